package storage

import (
	"strconv"
	"strings"
)

// Address locates a backend inside the object store: a container and an
// optional key prefix that always ends in "/" when set.
type Address struct {
	Container string
	Prefix    string
}

// ParseAddress splits a path-like string into container and prefix.
// Empty components are dropped, so "//c//a/b/" and "c/a/b" are the same.
func ParseAddress(path string) (Address, error) {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return Address{}, &ConfigurationError{Field: "container", Reason: "no container in " + strconv.Quote(path)}
	}

	addr := Address{Container: parts[0]}
	if len(parts) > 1 {
		addr.Prefix = strings.Join(parts[1:], "/") + "/"
	}
	return addr, nil
}

// Key returns the store-relative object name for a backend-relative name
func (a Address) Key(name string) string {
	return a.Prefix + name
}

// Relative strips the prefix from an object name. It returns false for
// names outside the prefix and for the prefix itself.
func (a Address) Relative(objectName string) (string, bool) {
	if !strings.HasPrefix(objectName, a.Prefix) {
		return "", false
	}
	name := objectName[len(a.Prefix):]
	return name, name != ""
}

func (a Address) String() string {
	return a.Container + "/" + a.Prefix
}

