//go:build pistondebug

package constraint

import "fmt"

const assertionsEnabled = true

func assert(truth bool, msg ...interface{}) {
	if !truth {
		panic(fmt.Sprint("Assertion failed: ", msg))
	}
}
