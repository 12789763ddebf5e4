package conf

// Mount copies the defaults of a nested config section into d, with
// every key prefixed by ns. It returns d for chaining.
func (d DefaultConfig) Mount(ns string, section DefaultConfig) DefaultConfig {
	for key, val := range section {
		d[ns+"."+key] = val
	}

	return d
}
