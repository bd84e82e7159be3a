//go:build !debug_mem_utils

package memutils

// DebugEnabled is true when the module is built with the debug_mem_utils tag. Expensive
// consistency checks are only run when it is set.
const DebugEnabled = false

// DebugValidate calls Validate on the provided object and panics if it returns an error.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugValidate(validatable Validatable) {
}

// DebugCheckPow2 panics if value is not a power of two.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
}
