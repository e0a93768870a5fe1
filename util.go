package rtcvoice

// Ptr is a utility function that returns a pointer to the given value.
// This is useful for setting optional fields in structs that require
// pointers, such as SessionConfig fields.
//
// Example usage:
//
//	cfg := SessionConfig{
//		Instructions: Ptr("You are a helpful assistant."),
//	}
func Ptr[T any](v T) *T { return &v }
