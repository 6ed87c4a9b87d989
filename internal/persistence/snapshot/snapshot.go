package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

// ErrInvalidScene is returned for any payload that cannot be decoded into a scene.
var ErrInvalidScene = errors.New("invalid scene file")

type Header struct {
	Version       int    `json:"version"`
	Tick          uint64 `json:"tick"`
	Seed          int64  `json:"seed"`
	SizeX         int    `json:"size_x"`
	SizeZ         int    `json:"size_z"`
	PaletteDigest string `json:"palette_digest,omitempty"`
}

type SceneV1 struct {
	Header Header `json:"header"`

	// Blocks excludes pole voxels, which are listed in Poles.
	Blocks []BlockV1 `json:"blocks"`
	Poles  []BlockV1 `json:"poles"`
	Wires  []WireV1  `json:"wires"`
}

type BlockV1 struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Z    int    `json:"z"`
	Type string `json:"type"`
}

type PointV1 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type WireV1 struct {
	From PointV1 `json:"from"`
	To   PointV1 `json:"to"`
}

// Encode writes a zstd frame holding one JSON header line followed by the JSON scene.
func Encode(w io.Writer, scene SceneV1) error {
	scene.Header.Version = Version
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(scene.Header)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := json.NewEncoder(bw).Encode(normalize(scene)); err != nil {
		enc.Close()
		return fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Decode reads a scene written by Encode. The body is validated against the
// embedded scene schema before it is returned.
func Decode(r io.Reader) (SceneV1, error) {
	var scene SceneV1
	dec, err := zstd.NewReader(r)
	if err != nil {
		return scene, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return scene, fmt.Errorf("%w: header: %v", ErrInvalidScene, err)
	}
	var hdr Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &hdr); err != nil {
		return scene, fmt.Errorf("%w: header: %v", ErrInvalidScene, err)
	}
	if hdr.Version != Version {
		return scene, fmt.Errorf("%w: unsupported version %d", ErrInvalidScene, hdr.Version)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return scene, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	scene, err = DecodeJSON(body)
	if err != nil {
		return scene, err
	}
	scene.Header = hdr
	return scene, nil
}

// DecodeJSON validates and decodes an uncompressed scene body, as sent by
// clients over the websocket.
func DecodeJSON(body []byte) (SceneV1, error) {
	var scene SceneV1
	if err := Validate(body); err != nil {
		return scene, err
	}
	if err := json.Unmarshal(body, &scene); err != nil {
		return scene, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	return normalize(scene), nil
}

// EncodeJSON is the uncompressed counterpart of Encode, header included.
func EncodeJSON(scene SceneV1) ([]byte, error) {
	scene.Header.Version = Version
	return json.Marshal(normalize(scene))
}

func WriteScene(path string, scene SceneV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Encode(f, scene); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func ReadScene(path string) (SceneV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return SceneV1{}, err
	}
	defer f.Close()
	return Decode(f)
}

// normalize turns nil lists into empty ones so the JSON body always carries all three.
func normalize(s SceneV1) SceneV1 {
	if s.Blocks == nil {
		s.Blocks = []BlockV1{}
	}
	if s.Poles == nil {
		s.Poles = []BlockV1{}
	}
	if s.Wires == nil {
		s.Wires = []WireV1{}
	}
	return s
}
