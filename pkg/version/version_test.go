package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	if Version == "dev" {
		return
	}
	semver := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	require.True(t, semver.MatchString(Version), "got %s", Version)
}

func TestString_ContainsBuildInfo(t *testing.T) {
	str := String()

	assert.Contains(t, str, "claridoc "+Version)
	assert.Contains(t, str, "commit: "+Commit)
	assert.Contains(t, str, GoVersion)
}

func TestGetInfo_JSON(t *testing.T) {
	// Given: the build info
	info := GetInfo()

	// When: encoding it
	data, err := json.Marshal(info)
	require.NoError(t, err)

	// Then: platform fields are present
	var out map[string]string
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, runtime.GOOS, out["os"])
	assert.Equal(t, runtime.GOARCH, out["arch"])
	assert.Equal(t, Version, out["version"])
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "claridoc/"+Version, UserAgent())
}
