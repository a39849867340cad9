package manifest

import (
	"strconv"
	"strings"
)

// FileFlag is a bit set of per-file attributes.
type FileFlag uint32

// File flags as stored in the listing.
const (
	FlagUserConfig          FileFlag = 1 << 0
	FlagVersionedUserConfig FileFlag = 1 << 1
	FlagEncrypted           FileFlag = 1 << 2
	FlagReadOnly            FileFlag = 1 << 3
	FlagHidden              FileFlag = 1 << 4
	FlagExecutable          FileFlag = 1 << 5
	FlagDirectory           FileFlag = 1 << 6
	FlagCustomExecutable    FileFlag = 1 << 7
	FlagInstallScript       FileFlag = 1 << 8
	FlagSymlink             FileFlag = 1 << 9
)

var flagNames = []struct {
	flag FileFlag
	name string
}{
	{FlagUserConfig, "userconfig"},
	{FlagVersionedUserConfig, "versioneduserconfig"},
	{FlagEncrypted, "encrypted"},
	{FlagReadOnly, "readonly"},
	{FlagHidden, "hidden"},
	{FlagExecutable, "executable"},
	{FlagDirectory, "directory"},
	{FlagCustomExecutable, "customexecutable"},
	{FlagInstallScript, "installscript"},
	{FlagSymlink, "symlink"},
}

// Has reports whether every bit of flag is set in f.
func (f FileFlag) Has(flag FileFlag) bool {
	return f&flag == flag
}

// String returns the set flags joined with "|", or "none".
func (f FileFlag) String() string {
	if f == 0 {
		return "none"
	}

	var parts []string
	rest := f
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
			rest &^= fn.flag
		}
	}
	if rest != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(rest), 16))
	}
	return strings.Join(parts, "|")
}
