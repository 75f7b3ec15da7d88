// Package itemdef decodes item definitions from the cache's config index.
// Definitions are opcode streams stored as plain files under
// (index 19, archive id>>8, file id&0xFF); the package is a consumer of the
// runefs facade and touches nothing below its (index, archive, file) surface.
package itemdef

import (
	"fmt"

	"github.com/runetools/runefs"
	"github.com/runetools/runefs/buffer"
)

// numOptions is the number of ground / inventory action slots.
const numOptions = 5

// ColorOverride remaps one model colour, (old, new).
type ColorOverride struct {
	From uint16
	To   uint16
}

// TextureOverride remaps one model texture, (old, new).
type TextureOverride struct {
	From uint16
	To   uint16
}

// Definition is the decoded form of one item's config record. Zero values
// mean the record never set the field.
type Definition struct {
	ID             uint32
	Model          uint16
	Name           string
	Stackable      bool
	StackSize      uint16
	Value          int32
	Members        bool

	MaleModel        uint16
	MaleModelExtra   uint16
	FemaleModel      uint16
	FemaleModelExtra uint16

	SpriteScale      uint16
	SpritePitch      uint16
	SpriteCameraRoll uint16
	SpriteTranslateX uint16
	SpriteTranslateY uint16

	GroundOptions    [numOptions]string
	InventoryOptions [numOptions]string

	ColorOverrides   []ColorOverride
	TextureOverrides []TextureOverride
}

// ForID loads and decodes the definition of one item. Item ids pack the
// archive in the high bits and the file in the low byte.
func ForID(fs *runefs.FileSystem, id uint32) (*Definition, error) {
	data, err := fs.Data(runefs.ConfigIndex, id>>8, id&0xFF)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", id, err)
	}
	def, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", id, err)
	}
	def.ID = id
	return def, nil
}

// Decode parses an item definition from its opcode stream. The stream is a
// sequence of opcode-tagged fields ending with opcode 0.
func Decode(data []byte) (*Definition, error) {
	buf := buffer.New(data)
	def := &Definition{}

	for {
		opcode, err := buf.Uint8()
		if err != nil {
			return nil, fmt.Errorf("item definition opcode: %w", err)
		}
		if opcode == 0 {
			return def, nil
		}
		if err := def.decodeField(buf, opcode); err != nil {
			return nil, fmt.Errorf("item definition opcode %d: %w", opcode, err)
		}
	}
}

func (d *Definition) decodeField(buf *buffer.Buffer, opcode uint8) error {
	var err error
	switch {
	case opcode == 1:
		d.Model, err = buf.Uint16()
	case opcode == 2:
		d.Name, err = buf.ReadString()
	case opcode == 4:
		d.SpriteScale, err = buf.Uint16()
	case opcode == 5:
		d.SpritePitch, err = buf.Uint16()
	case opcode == 6:
		d.SpriteCameraRoll, err = buf.Uint16()
	case opcode == 7:
		d.SpriteTranslateX, err = buf.Uint16()
	case opcode == 8:
		d.SpriteTranslateY, err = buf.Uint16()
	case opcode == 11:
		d.Stackable = true
	case opcode == 12:
		d.Value, err = buf.Int32()
	case opcode == 16:
		d.Members = true
	case opcode == 18:
		d.StackSize, err = buf.Uint16()
	case opcode == 23:
		d.MaleModel, err = buf.Uint16()
	case opcode == 24:
		d.MaleModelExtra, err = buf.Uint16()
	case opcode == 25:
		d.FemaleModel, err = buf.Uint16()
	case opcode == 26:
		d.FemaleModelExtra, err = buf.Uint16()
	case opcode >= 30 && opcode < 35:
		d.GroundOptions[opcode-30], err = buf.ReadString()
	case opcode >= 35 && opcode < 40:
		d.InventoryOptions[opcode-35], err = buf.ReadString()
	case opcode == 40:
		var pairs [][2]uint16
		if pairs, err = readPairs(buf); err == nil {
			d.ColorOverrides = make([]ColorOverride, len(pairs))
			for i, p := range pairs {
				d.ColorOverrides[i] = ColorOverride{From: p[0], To: p[1]}
			}
		}
	case opcode == 41:
		var pairs [][2]uint16
		if pairs, err = readPairs(buf); err == nil {
			d.TextureOverrides = make([]TextureOverride, len(pairs))
			for i, p := range pairs {
				d.TextureOverrides[i] = TextureOverride{From: p[0], To: p[1]}
			}
		}
	default:
		// Unknown opcodes carry an unknowable payload; the stream cannot be
		// resynchronized past them.
		return fmt.Errorf("unknown opcode")
	}
	return err
}

// readPairs reads a byte-counted list of (old, new) u16 pairs.
func readPairs(buf *buffer.Buffer) ([][2]uint16, error) {
	count, err := buf.Uint8()
	if err != nil {
		return nil, err
	}
	out := make([][2]uint16, count)
	for i := range out {
		if out[i][0], err = buf.Uint16(); err != nil {
			return nil, err
		}
		if out[i][1], err = buf.Uint16(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
