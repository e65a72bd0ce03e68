package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.Contains(t, info.String(), "atomdb")
}

func TestShort(t *testing.T) {
	assert.Equal(t, "0123456", Info{CommitHash: "0123456789abcdef"}.Short())
	assert.Equal(t, "dev", Info{CommitHash: "dev"}.Short())
}
