// Package trigram normalizes strings and hashes their 3-character sliding
// windows with FNV-1a, as required by the spec (the one hash function the
// trigram path is pinned to — dictionary/shard hashing uses xxhash instead,
// see internal/dict).
package trigram

import "hash/fnv"

// ShortStringHash is the distinguished hash used for strings that normalize
// to fewer than 3 valid characters.
const ShortStringHash uint32 = 0xA5A5A5A5

// normalize lowercases ASCII and drops non-alphanumeric runes, preserving
// digits, per spec §3.
func normalize(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c-'A'+'a')
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'):
			out = append(out, c)
		default:
			// drop
		}
	}
	return out
}

// hashWindow computes the FNV-1a hash of a 3-byte window.
func hashWindow(w []byte) uint32 {
	h := fnv.New32a()
	h.Write(w)
	return h.Sum32()
}

// Hashes returns the de-duplicated set of trigram hashes for s. Strings that
// normalize to fewer than 3 characters yield a single-element set containing
// ShortStringHash.
func Hashes(s string) map[uint32]struct{} {
	norm := normalize(s)
	out := make(map[uint32]struct{})
	if len(norm) < 3 {
		out[ShortStringHash] = struct{}{}
		return out
	}
	for i := 0; i+3 <= len(norm); i++ {
		out[hashWindow(norm[i:i+3])] = struct{}{}
	}
	return out
}

// HashesMulti returns the de-duplicated union of trigram hashes across
// several strings.
func HashesMulti(strs []string) map[uint32]struct{} {
	out := make(map[uint32]struct{})
	for _, s := range strs {
		for h := range Hashes(s) {
			out[h] = struct{}{}
		}
	}
	return out
}
