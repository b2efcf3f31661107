package testgen

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"os"
	"path"
	"path/filepath"
	"testing"
)

// RAR 1.5-4.x block types and flags used by the stored-only writer below.
const (
	rarBlockMain = 0x73
	rarBlockFile = 0x74
	rarBlockEnd  = 0x7b

	rarFlagLongBlock = 0x8000
	rarFlagDirectory = 0x00e0
	rarFlagEndSkip   = 0x4000

	rarHostUnix     = 3
	rarVersion      = 20
	rarMethodStored = 0x30
)

var rarMarker = []byte{0x52, 0x61, 0x72, 0x21, 0x1a, 0x07, 0x00}

// GenerateCBR creates a RAR 4 archive holding uncompressed ("stored") page
// images. Parent directories of the pages get their own directory entries.
func GenerateCBR(t *testing.T, dir, filename string, opts CBROptions) string {
	t.Helper()

	format := opts.ImageFormat
	if format == "" {
		format = "jpeg"
	}

	var buf bytes.Buffer
	buf.Write(rarMarker)
	buf.Write(buildRARBlock(rarBlockMain, 0, make([]byte, 6)))

	if opts.Dir != "" {
		buf.Write(buildRARFileHeader(opts.Dir, nil, true))
	}

	entries := resolvePages(t, opts.Pages, opts.PageCount, format)
	for _, e := range append(entries, opts.Extra...) {
		name := e.Name
		if opts.Dir != "" {
			name = path.Join(opts.Dir, name)
		}
		buf.Write(buildRARFileHeader(name, e.Data, false))
		buf.Write(e.Data)
	}

	buf.Write(buildRARBlock(rarBlockEnd, rarFlagEndSkip, nil))

	p := filepath.Join(dir, filename)
	if err := os.WriteFile(p, buf.Bytes(), 0600); err != nil {
		t.Fatalf("failed to write CBR file: %v", err)
	}
	return p
}

// buildRARBlock prefixes body with a block header. HEAD_CRC is the low 16 bits
// of the CRC32 of the header starting at HEAD_TYPE.
func buildRARBlock(blockType byte, flags uint16, body []byte) []byte {
	block := make([]byte, 7+len(body))
	block[2] = blockType
	binary.LittleEndian.PutUint16(block[3:5], flags)
	binary.LittleEndian.PutUint16(block[5:7], uint16(len(block))) //nolint:gosec // headers are small in test files
	copy(block[7:], body)

	crc := crc32.ChecksumIEEE(block[2:])
	binary.LittleEndian.PutUint16(block[0:2], uint16(crc&0xffff)) //nolint:gosec // truncation is the format
	return block
}

// buildRARFileHeader creates a file header for a stored entry. The packed data
// must be written right after it.
func buildRARFileHeader(name string, data []byte, isDir bool) []byte {
	flags := uint16(rarFlagLongBlock)
	attrs := uint32(0o100644)
	if isDir {
		flags |= rarFlagDirectory
		attrs = 0o40755
	}

	// 2020-01-01 00:00:00 in MS-DOS format.
	dosTime := uint32((2020-1980)<<9|1<<5|1) << 16

	body := make([]byte, 25+len(name))
	binary.LittleEndian.PutUint32(body[0:4], uint32(len(data))) //nolint:gosec // test files are small
	binary.LittleEndian.PutUint32(body[4:8], uint32(len(data))) //nolint:gosec // test files are small
	body[8] = rarHostUnix
	binary.LittleEndian.PutUint32(body[9:13], crc32.ChecksumIEEE(data))
	binary.LittleEndian.PutUint32(body[13:17], dosTime)
	body[17] = rarVersion
	body[18] = rarMethodStored
	binary.LittleEndian.PutUint16(body[19:21], uint16(len(name))) //nolint:gosec // names are short
	binary.LittleEndian.PutUint32(body[21:25], attrs)
	copy(body[25:], name)

	return buildRARBlock(rarBlockFile, flags, body)
}
