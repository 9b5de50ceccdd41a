package differ

// Option configures a Differ.
type Option func(*differ)

// WithIgnoredAttributes excludes custom attribute keys from comparison.
func WithIgnoredAttributes(keys ...string) Option {
	return func(d *differ) {
		for _, key := range keys {
			d.ignoredAttributes[key] = true
		}
	}
}

// WithCaseInsensitiveUserNames controls whether userNames are matched
// ignoring case. It is on by default.
func WithCaseInsensitiveUserNames(enabled bool) Option {
	return func(d *differ) {
		d.foldUserNames = enabled
	}
}
