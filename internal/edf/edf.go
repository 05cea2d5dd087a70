// Package edf reads ESRF Data Format images: one or more blocks, each an
// ASCII header enclosed in braces followed by a binary payload.
package edf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"sinogen/internal/stack"
)

func init() {
	stack.RegisterFormat(".edf", func(path string) (stack.Reader, error) {
		return Open(path)
	})
}

// Image is one data block of an EDF file.
type Image struct {
	Header map[string]string
	Data   *stack.Array
}

// Title returns the block's Title header, empty when the header has none.
func (im *Image) Title() string { return im.Header["title"] }

// File is a fully parsed EDF file.
type File struct {
	Images []*Image
}

// Open reads and parses every block of an EDF file.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	file := &File{}
	for {
		im, err := readBlock(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("edf %s: block %d: %w", path, len(file.Images), err)
		}
		file.Images = append(file.Images, im)
	}
	if len(file.Images) == 0 {
		return nil, fmt.Errorf("edf %s: no data blocks", path)
	}
	return file, nil
}

// GetImage resolves a dataset by Title header, or by ordinal when name is
// numeric. Missing datasets report stack.ErrNoDataset so callers can fall
// back to a shared dark profile.
func (f *File) GetImage(name string) (*stack.Array, error) {
	for _, im := range f.Images {
		if strings.EqualFold(im.Title(), name) {
			return im.Data, nil
		}
	}
	if i, err := strconv.Atoi(name); err == nil && i >= 0 && i < len(f.Images) {
		return f.Images[i].Data, nil
	}
	return nil, stack.ErrNoDataset
}

// Close implements stack.Reader. The file contents are fully materialized
// by Open, so there is nothing to release.
func (f *File) Close() error { return nil }

func readBlock(br *bufio.Reader) (*Image, error) {
	header, err := readHeader(br)
	if err != nil {
		return nil, err
	}

	dim1, err := headerInt(header, "dim_1")
	if err != nil {
		return nil, err
	}
	dim2 := 1
	if _, ok := header["dim_2"]; ok {
		if dim2, err = headerInt(header, "dim_2"); err != nil {
			return nil, err
		}
	}
	size, err := headerInt(header, "size")
	if err != nil {
		return nil, err
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(br, payload); err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}

	order := binary.ByteOrder(binary.LittleEndian)
	if strings.EqualFold(header["byteorder"], "HighByteFirst") {
		order = binary.BigEndian
	}
	data, err := decodePixels(payload, header["datatype"], dim1*dim2, order)
	if err != nil {
		return nil, err
	}

	return &Image{
		Header: header,
		Data:   &stack.Array{Shape: []int{dim2, dim1}, Data: data},
	}, nil
}

// readHeader consumes one brace-delimited header. Keys are lowercased;
// values keep their case. Returns io.EOF when no further block exists.
func readHeader(br *bufio.Reader) (map[string]string, error) {
	// Skip padding between blocks.
	for {
		b, err := br.ReadByte()
		if err != nil {
			return nil, io.EOF
		}
		if b == '{' {
			break
		}
		if b != '\n' && b != '\r' && b != ' ' && b != 0 {
			return nil, fmt.Errorf("unexpected byte %q before header", b)
		}
	}

	header := make(map[string]string)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("header: %w", err)
		}
		line = strings.TrimSpace(line)
		done := false
		if i := strings.Index(line, "}"); i >= 0 {
			line = strings.TrimSpace(line[:i])
			done = true
		}
		if line != "" {
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				return nil, fmt.Errorf("malformed header line %q", line)
			}
			value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), ";"))
			header[strings.ToLower(strings.TrimSpace(key))] = value
		}
		if done {
			break
		}
	}
	return header, nil
}

func headerInt(header map[string]string, key string) (int, error) {
	v, ok := header[key]
	if !ok {
		return 0, fmt.Errorf("missing header field %s", key)
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("header field %s: %w", key, err)
	}
	return n, nil
}

func decodePixels(payload []byte, dataType string, n int, order binary.ByteOrder) ([]float64, error) {
	out := make([]float64, n)
	switch strings.ToLower(dataType) {
	case "unsignedshort":
		if len(payload) < 2*n {
			return nil, fmt.Errorf("payload too short for %d UnsignedShort pixels", n)
		}
		for i := 0; i < n; i++ {
			out[i] = float64(order.Uint16(payload[2*i:]))
		}
	case "signedinteger", "unsignedinteger", "unsignedlong":
		if len(payload) < 4*n {
			return nil, fmt.Errorf("payload too short for %d 32-bit pixels", n)
		}
		for i := 0; i < n; i++ {
			out[i] = float64(int32(order.Uint32(payload[4*i:])))
		}
	case "float", "floatvalue", "real":
		if len(payload) < 4*n {
			return nil, fmt.Errorf("payload too short for %d Float pixels", n)
		}
		for i := 0; i < n; i++ {
			out[i] = float64(math.Float32frombits(order.Uint32(payload[4*i:])))
		}
	case "double", "doublevalue":
		if len(payload) < 8*n {
			return nil, fmt.Errorf("payload too short for %d Double pixels", n)
		}
		for i := 0; i < n; i++ {
			out[i] = math.Float64frombits(order.Uint64(payload[8*i:]))
		}
	default:
		return nil, fmt.Errorf("unsupported DataType %q", dataType)
	}
	return out, nil
}
