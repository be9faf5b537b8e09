//go:build galaxydebug

package starfield

// DebugAssertions is true when built with the galaxydebug tag.
const DebugAssertions = true

func assertShape(err error) {
	if err != nil {
		panic(err)
	}
}
