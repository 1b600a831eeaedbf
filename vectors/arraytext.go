package vectors

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// MatrixSaver stores a matrix under a path or key.
type MatrixSaver func(m mat.Matrix, path string) error

// MatrixLoader loads a matrix stored by the matching MatrixSaver.
type MatrixLoader func(path string) (*mat.Dense, error)

// SaveArrayText writes m to path as whitespace separated rows of text. The
// shortest representation that parses back to the same float64 is used, so
// LoadArrayText returns exactly m.
func SaveArrayText(m mat.Matrix, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	r, c := m.Dims()
	for row := 0; row < r; row++ {
		for col := 0; col < c; col++ {
			if col > 0 {
				w.WriteByte(' ')
			}
			w.WriteString(strconv.FormatFloat(m.At(row, col), 'g', -1, 64))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadArrayText reads a matrix written by SaveArrayText. Empty lines and
// lines starting with '#' are skipped.
func LoadArrayText(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		data []float64
		rows int
		cols = -1
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<30)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if cols >= 0 && len(fields) != cols {
			return nil, fmt.Errorf("vectors: %s:%d has %d columns, expected %d", path, line, len(fields), cols)
		}
		cols = len(fields)
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("vectors: %s:%d: %w", path, line, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("vectors: %s holds no array", path)
	}
	return mat.NewDense(rows, cols, data), nil
}

// ArrayTextHandle is a vector stored in an array text file as a column.
type ArrayTextHandle struct {
	Path string
}

// Get loads the vector. A single row or a single column is accepted.
func (h ArrayTextHandle) Get() (*mat.VecDense, error) {
	m, err := LoadArrayText(h.Path)
	if err != nil {
		return nil, err
	}
	r, c := m.Dims()
	if r != 1 && c != 1 {
		return nil, fmt.Errorf("vectors: %s holds a %dx%d array, not a vector", h.Path, r, c)
	}
	return mat.NewVecDense(r*c, m.RawMatrix().Data), nil
}

// Put saves v as a column.
func (h ArrayTextHandle) Put(v mat.Vector) error {
	return SaveArrayText(v, h.Path)
}

// ArrayTextHandles returns one handle per index with the path
// fmt.Sprintf(template, index).
func ArrayTextHandles(template string, indices []int) []Handle {
	res := make([]Handle, len(indices))
	for i, index := range indices {
		res[i] = ArrayTextHandle{Path: fmt.Sprintf(template, index)}
	}
	return res
}

// Range returns the indices from, from+1, ..., from+n-1.
func Range(from, n int) []int {
	res := make([]int, n)
	for i := range res {
		res[i] = from + i
	}
	return res
}
