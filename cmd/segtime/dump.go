package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/tetsuo/segtime"
)

// BoxNode is a box in the tree structure.
type BoxNode struct {
	Type     string         `json:"type"`
	Offset   int            `json:"offset"`
	Size     int            `json:"size"`
	Info     map[string]any `json:"info,omitempty"`
	Children []BoxNode      `json:"children,omitempty"`
}

// buildTree walks the boxes in buf[offset:end]. It returns the nodes and the
// offset where the walk stopped; a stop short of end means the remaining
// bytes do not start with a well-formed box.
func buildTree(buf []byte, offset, end int, tfhd *segtime.Tfhd) ([]BoxNode, int) {
	var nodes []BoxNode
	for {
		b, ok := segtime.NextBox(buf[:end], offset)
		if !ok {
			return nodes, offset
		}
		node := BoxNode{
			Type:   b.Type.String(),
			Offset: b.Offset,
			Size:   b.Size,
			Info:   collectBoxInfo(b, tfhd),
		}

		if segtime.IsContainerBox(b.Type) {
			childTfhd := tfhd
			if b.Type == segtime.TypeTraf {
				if hb, ok := segtime.FindBox(buf[:b.End()], b.Offset+8, segtime.TypeTfhd); ok {
					if t, err := segtime.ReadTfhd(hb); err == nil {
						childTfhd = &t
					}
				}
			}
			node.Children, _ = buildTree(buf, b.Offset+8, b.End(), childTfhd)
		}

		nodes = append(nodes, node)
		offset = b.End()
	}
}

func collectBoxInfo(b segtime.Box, tfhd *segtime.Tfhd) map[string]any {
	info := make(map[string]any)

	switch b.Type {
	case segtime.TypeSidx:
		if ts, err := segtime.ReadSidxTimescale(b); err == nil {
			info["timescale"] = ts
		} else {
			info["error"] = err.Error()
		}

	case segtime.TypeMvhd:
		if ts, err := segtime.ReadMvhdTimescale(b); err == nil {
			info["timescale"] = ts
		} else {
			info["error"] = err.Error()
		}

	case segtime.TypeMfhd:
		if seq, err := segtime.ReadMfhd(b); err == nil {
			info["sequence"] = seq
		} else {
			info["error"] = err.Error()
		}

	case segtime.TypeTfhd:
		t, err := segtime.ReadTfhd(b)
		if err != nil {
			info["error"] = err.Error()
			break
		}
		info["trackId"] = t.TrackID
		info["flags"] = fmt.Sprintf("0x%06x", t.Flags&0x00ffffff)

	case segtime.TypeTfdt:
		bt, v, err := segtime.ReadTfdt(b)
		if err != nil {
			info["error"] = err.Error()
			break
		}
		info["baseMediaDecodeTime"] = bt
		info["version"] = v

	case segtime.TypeTrun:
		var defaults segtime.Tfhd
		if tfhd != nil {
			defaults = *tfhd
		}
		t, err := segtime.ReadTrun(b, defaults)
		if err != nil {
			info["error"] = err.Error()
			break
		}
		info["entries"] = len(t.Entries)
		info["flags"] = fmt.Sprintf("0x%06x", t.Flags&0x00ffffff)
		if t.Flags&segtime.TrunDataOffsetPresent != 0 {
			info["dataOffset"] = t.DataOffset
		}
		var dur uint64
		for _, e := range t.Entries {
			dur += uint64(e.Duration)
		}
		info["duration"] = dur

	case segtime.TypeMdat:
		info["dataLength"] = b.Size - 8
	}

	if len(info) == 0 {
		return nil
	}
	return info
}

// printTree prints the tree in the specified format
func printTree(w io.Writer, nodes []BoxNode, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	default:
		for _, node := range nodes {
			printNodeText(w, node, 0)
		}
	}
	return nil
}

// printNodeText prints a single node in text format
func printNodeText(w io.Writer, node BoxNode, depth int) {
	indent := strings.Repeat("  ", depth)

	fmt.Fprintf(w, "%s[%s] offset=%d size=%d", indent, node.Type, node.Offset, node.Size)
	for _, key := range slices.Sorted(maps.Keys(node.Info)) {
		fmt.Fprintf(w, " %s=%v", key, node.Info[key])
	}
	fmt.Fprintln(w)

	for _, child := range node.Children {
		printNodeText(w, child, depth+1)
	}
}
