package cache

// Key layout:
//
//	catalog:model:{provider}:{model_id}  one canonical model
//	catalog:index:{provider}             member model ids of a provider
//	catalog:l2:{full|unique}             merged snapshot
//	catalog:l1:{signature}               final query response
const (
	modelPrefix = "catalog:model:"
	indexPrefix = "catalog:index:"
	l2Prefix    = "catalog:l2:"

	// L1Prefix is shared by all query response keys.
	L1Prefix = "catalog:l1:"
)

// ModelEntryKey is the per-model entry key.
func ModelEntryKey(provider, providerModelID string) string {
	return modelPrefix + provider + ":" + providerModelID
}

// IndexKey is the per-provider index key.
func IndexKey(provider string) string {
	return indexPrefix + provider
}

// L2Key is the merged snapshot key for the deduplicated or full view.
func L2Key(unique bool) string {
	if unique {
		return l2Prefix + "unique"
	}
	return l2Prefix + "full"
}

// L1Key is the query response key for a signature.
func L1Key(signature string) string {
	return L1Prefix + signature
}
