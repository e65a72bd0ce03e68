package commands

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/traverse"
)

// TraverseCmd lists or walks the neighborhood of an atom
var TraverseCmd = &cobra.Command{
	Use:   "traverse",
	Short: "List the neighbors of an atom or take a random walk",
	Long: `Place a cursor on an atom and list its neighbors, or follow --steps
randomly chosen links from it.

Filters combine: --link-type keeps one link type, --position keeps links that
hold the cursor at that target index, --target-type keeps links with another
target of that type, and --where keeps links for which a CEL expression over
link.type, link.targets, link.arity, link.toplevel and link.attributes holds.

Examples:
  atomdb traverse --load animals.yaml --name human
  atomdb traverse --load animals.yaml --name snake --link-type Inheritance --position 0 --steps 3
  atomdb traverse --name human --where 'link.type == "Similarity"' --links`,
	RunE: runTraverse,
}

var (
	traverseType       string
	traverseName       string
	traverseHandle     string
	traverseLinkType   string
	traversePosition   int
	traverseTargetType string
	traverseWhere      []string
	traverseSteps      int
	traverseSeed       uint64
	traverseLinks      bool
	traverseLoad       []string
	traverseFormat     string
)

func init() {
	f := TraverseCmd.Flags()
	f.StringVar(&traverseType, "type", "Concept", "Type of the start node")
	f.StringVar(&traverseName, "name", "", "Name of the start node")
	f.StringVar(&traverseHandle, "handle", "", "Handle of the start atom (instead of --type/--name)")
	f.StringVar(&traverseLinkType, "link-type", "", "Keep links of this type")
	f.IntVar(&traversePosition, "position", -1, "Keep links holding the cursor at this target index")
	f.StringVar(&traverseTargetType, "target-type", "", "Keep links with another target of this type")
	f.StringArrayVar(&traverseWhere, "where", nil, "Keep links matching a CEL expression (repeatable)")
	f.IntVar(&traverseSteps, "steps", 0, "Follow this many random links instead of listing neighbors")
	f.Uint64Var(&traverseSeed, "seed", 0, "Seed for --steps (0 = random)")
	f.BoolVar(&traverseLinks, "links", false, "List the matching links instead of neighbors")
	f.StringSliceVar(&traverseLoad, "load", nil, "Knowledge-base files to load first")
	f.StringVar(&traverseFormat, "format", FormatText, "Output format: text, json")
}

func traverseFilters() []traverse.Filter {
	var fs []traverse.Filter
	if traverseLinkType != "" {
		fs = append(fs, traverse.LinkType(traverseLinkType))
	}
	if traversePosition >= 0 {
		fs = append(fs, traverse.CursorPosition(traversePosition))
	}
	if traverseTargetType != "" {
		fs = append(fs, traverse.TargetType(traverseTargetType))
	}
	for _, w := range traverseWhere {
		fs = append(fs, traverse.Where(w))
	}
	return fs
}

func runTraverse(cmd *cobra.Command, args []string) error {
	if err := checkFormat(traverseFormat); err != nil {
		return err
	}
	if traverseHandle == "" && traverseName == "" {
		return errors.NewInvalidRequestError("give --name or --handle")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	if err := preload(ctx, b, traverseLoad); err != nil {
		return err
	}

	start := hasher.Handle(traverseHandle)
	if start == "" {
		start, err = b.GetNodeHandle(ctx, traverseType, traverseName)
		if err != nil {
			return err
		}
	}

	opts := []traverse.Option{
		traverse.WithChunkSize(cfg.Query.ChunkSize),
		traverse.WithLogger(logger.Logger.Named("traverse")),
	}
	if traverseSeed != 0 {
		opts = append(opts, traverse.WithRand(rand.New(rand.NewPCG(traverseSeed, traverseSeed))))
	}
	e, err := traverse.New(ctx, b, start, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	filters := traverseFilters()
	if traverseSteps > 0 {
		for i := 1; i <= traverseSteps; i++ {
			a, err := e.FollowLink(ctx, filters...)
			if errors.IsNotFoundError(err) {
				fmt.Fprintf(out, "dead end after %d steps\n", i-1)
				return nil
			}
			if err != nil {
				return err
			}
			if err := writeAtom(out, traverseFormat, a); err != nil {
				return err
			}
		}
		return nil
	}

	list := e.GetNeighbors
	if traverseLinks {
		list = e.GetLinks
	}
	it, err := list(ctx, filters...)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		a, err := it.Get()
		if err != nil {
			return err
		}
		if err := writeAtom(out, traverseFormat, a); err != nil {
			return err
		}
	}
	return it.Err()
}
