//go:build !galaxydebug

package starfield

// DebugAssertions is true when built with the galaxydebug tag.
const DebugAssertions = false

func assertShape(error) {}
