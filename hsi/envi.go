package hsi

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Header holds the fields parsed from an ENVI .hdr file.
type Header struct {
	Samples    int
	Lines      int
	Bands      int
	Offset     int
	DataType   int
	ByteOrder  int
	FileType   string
	Interleave string
	Wavelength []float32
	Classes    int
	ClassNames []string
}

func (h *Header) String() string {
	return fmt.Sprintf("%dx%d pixels %d bands type %d interleave %s",
		h.Samples, h.Lines, h.Bands, h.DataType, h.Interleave)
}

// ReadHeader parses an ENVI format text header.
// Values in braces may span multiple lines and are split on commas.
func ReadHeader(r io.Reader) (*Header, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return nil, fmt.Errorf("envi: empty header")
	}
	if !strings.Contains(scanner.Text(), "ENVI") {
		return nil, fmt.Errorf("envi: missing ENVI magic in header")
	}
	fields := map[string]string{}
	for scanner.Scan() {
		line := scanner.Text()
		ix := strings.Index(line, "=")
		if ix < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:ix]))
		val := strings.TrimSpace(line[ix+1:])
		if strings.HasPrefix(val, "{") {
			for !strings.Contains(val, "}") && scanner.Scan() {
				val += " " + strings.TrimSpace(scanner.Text())
			}
			val = strings.TrimSpace(val)
			val = strings.TrimSuffix(strings.TrimPrefix(val, "{"), "}")
		}
		fields[key] = strings.TrimSpace(val)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	h := &Header{Interleave: "bsq", FileType: fields["file type"]}
	var err error
	for key, ptr := range map[string]*int{
		"samples": &h.Samples, "lines": &h.Lines, "bands": &h.Bands,
		"header offset": &h.Offset, "data type": &h.DataType,
		"byte order": &h.ByteOrder, "classes": &h.Classes,
	} {
		if val, ok := fields[key]; ok {
			if *ptr, err = strconv.Atoi(val); err != nil {
				return nil, fmt.Errorf("envi: invalid %s: %s", key, val)
			}
		}
	}
	if val, ok := fields["interleave"]; ok {
		h.Interleave = strings.ToLower(val)
	}
	if val, ok := fields["wavelength"]; ok {
		for _, s := range strings.Split(val, ",") {
			w, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
			if err != nil {
				return nil, fmt.Errorf("envi: invalid wavelength: %s", s)
			}
			h.Wavelength = append(h.Wavelength, float32(w))
		}
	}
	if val, ok := fields["class names"]; ok {
		for _, s := range strings.Split(val, ",") {
			h.ClassNames = append(h.ClassNames, strings.TrimSpace(s))
		}
	}
	if h.Samples < 1 || h.Lines < 1 || h.Bands < 1 {
		return nil, fmt.Errorf("envi: missing image dimensions")
	}
	return h, nil
}

// headerFile locates the .hdr file for the given raw image file
func headerFile(file string) string {
	if _, err := os.Stat(file + ".hdr"); err == nil {
		return file + ".hdr"
	}
	if ix := strings.LastIndex(file, "."); ix > 0 {
		return file[:ix] + ".hdr"
	}
	return file + ".hdr"
}

// ReadImage reads an ENVI raw image file together with its header and
// returns the cube converted to float32 in pixel major order.
func ReadImage(file string) (*Header, []float32, error) {
	f, err := os.Open(headerFile(file))
	if err != nil {
		return nil, nil, err
	}
	h, err := ReadHeader(f)
	f.Close()
	if err != nil {
		return nil, nil, err
	}
	f, err = os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	raw, err := readRaw(bufio.NewReader(f), h)
	if err != nil {
		return nil, nil, err
	}
	data, err := toPixelMajor(raw, h)
	if err != nil {
		return nil, nil, err
	}
	return h, data, nil
}

// ReadLabels reads an ENVI classification raster with the ground truth
// class per pixel, class 0 is unlabelled.
func ReadLabels(file string) (*Header, []int32, error) {
	h, data, err := ReadImage(file)
	if err != nil {
		return nil, nil, err
	}
	if h.Bands != 1 {
		return nil, nil, fmt.Errorf("envi: expect single band classification file: got %d", h.Bands)
	}
	labels := make([]int32, len(data))
	for i, v := range data {
		labels[i] = int32(v)
	}
	return h, labels, nil
}

// decode raw samples to float32 in file order
func readRaw(r io.Reader, h *Header) ([]float32, error) {
	if h.Offset > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(h.Offset)); err != nil {
			return nil, err
		}
	}
	n := h.Samples * h.Lines * h.Bands
	order := binary.ByteOrder(binary.LittleEndian)
	if h.ByteOrder == 1 {
		order = binary.BigEndian
	}
	data := make([]float32, n)
	switch h.DataType {
	case 1:
		buf := make([]uint8, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			data[i] = float32(v)
		}
	case 2:
		buf := make([]int16, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			data[i] = float32(v)
		}
	case 3:
		buf := make([]int32, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			data[i] = float32(v)
		}
	case 4:
		if err := binary.Read(r, order, data); err != nil {
			return nil, err
		}
	case 5:
		buf := make([]float64, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			data[i] = float32(v)
		}
	case 12:
		buf := make([]uint16, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			data[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("envi: unsupported data type %d", h.DataType)
	}
	return data, nil
}

// reorder cube from file interleave to pixel major [h*w][bands]
func toPixelMajor(src []float32, h *Header) ([]float32, error) {
	w, ht, nb := h.Samples, h.Lines, h.Bands
	if h.Interleave == "bip" || nb == 1 {
		return src, nil
	}
	dst := make([]float32, len(src))
	switch h.Interleave {
	case "bsq":
		for b := 0; b < nb; b++ {
			for i := 0; i < w*ht; i++ {
				dst[i*nb+b] = src[b*w*ht+i]
			}
		}
	case "bil":
		for y := 0; y < ht; y++ {
			for b := 0; b < nb; b++ {
				for x := 0; x < w; x++ {
					dst[(y*w+x)*nb+b] = src[(y*nb+b)*w+x]
				}
			}
		}
	default:
		return nil, fmt.Errorf("envi: unsupported interleave %s", h.Interleave)
	}
	return dst, nil
}

// Import builds a scene from an ENVI image and classification raster pair.
// Class names are taken from the ground truth header if present, else generated.
func Import(name, imgFile, gtFile string) (*Scene, error) {
	h, data, err := ReadImage(imgFile)
	if err != nil {
		return nil, err
	}
	gt, labels, err := ReadLabels(gtFile)
	if err != nil {
		return nil, err
	}
	if gt.Samples != h.Samples || gt.Lines != h.Lines {
		return nil, fmt.Errorf("envi: ground truth is %dx%d but image is %dx%d",
			gt.Samples, gt.Lines, h.Samples, h.Lines)
	}
	maxLabel := 0
	for _, l := range labels {
		if int(l) > maxLabel {
			maxLabel = int(l)
		}
	}
	if maxLabel == 0 {
		return nil, fmt.Errorf("envi: ground truth has no labelled pixels")
	}
	var classes []string
	if len(gt.ClassNames) == maxLabel+1 {
		// first entry is the unclassified background
		classes = gt.ClassNames[1:]
	} else {
		for i := 1; i <= maxLabel; i++ {
			classes = append(classes, "class "+strconv.Itoa(i))
		}
	}
	s := &Scene{
		SceneHead: SceneHead{
			Name: name, Width: h.Samples, Height: h.Lines, Bands: h.Bands,
			Class: classes, Wavelength: h.Wavelength,
		},
		Data:   data,
		Labels: labels,
	}
	return s, nil
}
