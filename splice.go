package segtime

import "fmt"

// SpliceFragment replaces the first moof in media with moof and keeps every
// byte around it, so a moof produced by RewriteTimestamps ends up in front of
// the original mdat.
func SpliceFragment(media, moof []byte) ([]byte, error) {
	old, ok := FindBox(media, 0, TypeMoof)
	if !ok {
		return nil, fmt.Errorf("no moof in media: %w", ErrUnrewritable)
	}
	b, ok := NextBox(moof, 0)
	if !ok || b.Type != TypeMoof || b.Size != len(moof) {
		return nil, fmt.Errorf("replacement is not a single moof box: %w", ErrUnrewritable)
	}
	out := make([]byte, 0, len(media)-old.Size+len(moof))
	out = append(out, media[:old.Offset]...)
	out = append(out, moof...)
	out = append(out, media[old.End():]...)
	return out, nil
}
