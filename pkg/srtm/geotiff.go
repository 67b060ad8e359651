package srtm

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// TIFF tags read from the first IFD of a tile
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
)

const (
	compressionNone       = 1
	compressionDeflate    = 8
	compressionOldDeflate = 32946

	predictorNone       = 1
	predictorHorizontal = 2

	sampleFormatUint = 1
	sampleFormatInt  = 2
)

// maxIFDValues bounds tag arrays; a 6001x6001 tile has one strip per row.
const maxIFDValues = 1 << 20

// errUnsupportedLayout marks valid TIFF files this reader does not decode,
// such as other bit depths or compressions.
var errUnsupportedLayout = errors.New("unsupported tiff layout")

// tiffLayout describes a single band raster stored in strips or tiles.
type tiffLayout struct {
	order         binary.ByteOrder
	width, height int
	bitsPerSample uint64
	samples       uint64
	sampleFormat  uint64
	compression   uint64
	predictor     uint64

	// Strips are blocks as wide as the image
	tiled                   bool
	blockWidth, blockHeight int
	offsets, byteCounts     []uint64
}

// readLayout parses the header and first IFD of a classic TIFF file.
func readLayout(r io.ReaderAt) (*tiffLayout, error) {
	var header [8]byte
	if _, err := r.ReadAt(header[:], 0); err != nil {
		return nil, fmt.Errorf("read tiff header: %w", err)
	}

	l := &tiffLayout{}
	switch string(header[:2]) {
	case "II":
		l.order = binary.LittleEndian
	case "MM":
		l.order = binary.BigEndian
	default:
		return nil, errors.New("invalid tiff byte order")
	}
	switch l.order.Uint16(header[2:]) {
	case 42:
	case 43:
		return nil, fmt.Errorf("bigtiff: %w", errUnsupportedLayout)
	default:
		return nil, errors.New("invalid tiff identifier")
	}

	ifd := int64(l.order.Uint32(header[4:]))
	var count [2]byte
	if _, err := r.ReadAt(count[:], ifd); err != nil {
		return nil, fmt.Errorf("read ifd: %w", err)
	}
	entries := make([]byte, 12*int(l.order.Uint16(count[:])))
	if _, err := r.ReadAt(entries, ifd+2); err != nil {
		return nil, fmt.Errorf("read ifd entries: %w", err)
	}

	tags := make(map[uint16][]uint64)
	for i := 0; i < len(entries); i += 12 {
		e := entries[i : i+12]
		tag := l.order.Uint16(e)
		switch tag {
		case tagImageWidth, tagImageLength, tagBitsPerSample, tagCompression,
			tagStripOffsets, tagSamplesPerPixel, tagRowsPerStrip, tagStripByteCounts,
			tagPredictor, tagTileWidth, tagTileLength, tagTileOffsets,
			tagTileByteCounts, tagSampleFormat:
		default:
			continue
		}
		values, err := l.entryValues(r, e)
		if err != nil {
			return nil, fmt.Errorf("tiff tag %d: %w", tag, err)
		}
		tags[tag] = values
	}

	first := func(tag uint16, def uint64) uint64 {
		if v := tags[tag]; len(v) > 0 {
			return v[0]
		}
		return def
	}

	l.width = int(first(tagImageWidth, 0))
	l.height = int(first(tagImageLength, 0))
	if l.width <= 0 || l.height <= 0 {
		return nil, errors.New("tiff has no image size")
	}
	l.bitsPerSample = first(tagBitsPerSample, 1)
	l.samples = first(tagSamplesPerPixel, 1)
	l.sampleFormat = first(tagSampleFormat, sampleFormatUint)
	l.compression = first(tagCompression, compressionNone)
	l.predictor = first(tagPredictor, predictorNone)

	if _, ok := tags[tagTileOffsets]; ok {
		l.tiled = true
		l.blockWidth = int(first(tagTileWidth, 0))
		l.blockHeight = int(first(tagTileLength, 0))
		l.offsets, l.byteCounts = tags[tagTileOffsets], tags[tagTileByteCounts]
	} else {
		l.blockWidth = l.width
		l.blockHeight = int(first(tagRowsPerStrip, uint64(l.height)))
		if l.blockHeight > l.height {
			l.blockHeight = l.height
		}
		l.offsets, l.byteCounts = tags[tagStripOffsets], tags[tagStripByteCounts]
	}
	if l.blockWidth <= 0 || l.blockHeight <= 0 {
		return nil, errors.New("tiff has no block size")
	}
	if len(l.offsets) < l.blocks() || len(l.byteCounts) < l.blocks() {
		return nil, fmt.Errorf("tiff lists %d blocks, need %d", len(l.offsets), l.blocks())
	}
	return l, nil
}

// entryValues returns the values of a SHORT or LONG entry, inline or not.
func (l *tiffLayout) entryValues(r io.ReaderAt, e []byte) ([]uint64, error) {
	var size int
	switch l.order.Uint16(e[2:]) {
	case 1: // BYTE
		size = 1
	case 3: // SHORT
		size = 2
	case 4: // LONG
		size = 4
	default:
		return nil, fmt.Errorf("field type %d: %w", l.order.Uint16(e[2:]), errUnsupportedLayout)
	}

	n := l.order.Uint32(e[4:])
	if n > maxIFDValues {
		return nil, fmt.Errorf("%d values exceed limit", n)
	}
	data := e[8:12]
	if total := int(n) * size; total > 4 {
		data = make([]byte, total)
		if _, err := r.ReadAt(data, int64(l.order.Uint32(e[8:]))); err != nil {
			return nil, err
		}
	}

	values := make([]uint64, n)
	for i := range values {
		switch size {
		case 1:
			values[i] = uint64(data[i])
		case 2:
			values[i] = uint64(l.order.Uint16(data[2*i:]))
		case 4:
			values[i] = uint64(l.order.Uint32(data[4*i:]))
		}
	}
	return values, nil
}

func (l *tiffLayout) blocksAcross() int { return (l.width + l.blockWidth - 1) / l.blockWidth }

func (l *tiffLayout) blocks() int {
	return l.blocksAcross() * ((l.height + l.blockHeight - 1) / l.blockHeight)
}

// int16Samples reports whether the raster holds one 16-bit integer band this
// reader can decode. Unsigned samples are reinterpreted as signed.
func (l *tiffLayout) int16Samples() bool {
	if l.bitsPerSample != 16 || l.samples != 1 {
		return false
	}
	if l.sampleFormat != sampleFormatInt && l.sampleFormat != sampleFormatUint {
		return false
	}
	switch l.compression {
	case compressionNone, compressionDeflate, compressionOldDeflate:
	default:
		return false
	}
	return l.predictor == predictorNone || l.predictor == predictorHorizontal
}

// decodeInt16 reads the whole raster, row-major from the top left sample.
func (l *tiffLayout) decodeInt16(r io.ReaderAt) ([]int16, error) {
	if !l.int16Samples() {
		return nil, fmt.Errorf("%d-bit samples, format %d, compression %d: %w",
			l.bitsPerSample, l.sampleFormat, l.compression, errUnsupportedLayout)
	}

	out := make([]int16, l.width*l.height)
	across := l.blocksAcross()
	for b := 0; b < l.blocks(); b++ {
		x0 := (b % across) * l.blockWidth
		y0 := (b / across) * l.blockHeight

		// Tiles are stored padded; the last strip only holds the rows left
		rows := l.blockHeight
		if !l.tiled && y0+rows > l.height {
			rows = l.height - y0
		}

		data, err := l.readBlock(r, b)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", b, err)
		}
		if len(data) < 2*l.blockWidth*rows {
			return nil, fmt.Errorf("block %d: %d bytes, want %d", b, len(data), 2*l.blockWidth*rows)
		}

		for row := 0; row < rows && y0+row < l.height; row++ {
			line := data[2*l.blockWidth*row:]
			var acc uint16
			for col := 0; col < l.blockWidth; col++ {
				v := l.order.Uint16(line[2*col:])
				if l.predictor == predictorHorizontal {
					acc += v
					v = acc
				}
				if x0+col < l.width {
					out[(y0+row)*l.width+x0+col] = int16(v)
				}
			}
		}
	}
	return out, nil
}

func (l *tiffLayout) readBlock(r io.ReaderAt, b int) ([]byte, error) {
	raw := make([]byte, l.byteCounts[b])
	if _, err := r.ReadAt(raw, int64(l.offsets[b])); err != nil {
		return nil, err
	}
	if l.compression == compressionNone {
		return raw, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
