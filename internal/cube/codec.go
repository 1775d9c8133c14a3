package cube

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/incident"
	"crime-hotspots/internal/month"
)

var ErrCacheCorrupt = errors.New("cache artifact corrupt")

var magic = []byte("CCUBE\x01")

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// 文档注释：制品编码
// 背景：单元编号表 + 有序条目的变长整数序列，整体 zstd 压缩；数十万条目的立方体压缩后通常只有数 MB。
// 格式（压缩前）：kind | 单元数 | 单元编号… | 条目数 | {单元下标, 年, 月, 类别, 计数}…
// 约束：条目按规范顺序写出，同一立方体总是得到逐字节相同的制品。
func Encode(c *Cube) []byte {
	entries := c.Entries()
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte
	putU := func(v uint64) {
		n := binary.PutUvarint(tmp[:], v)
		buf.Write(tmp[:n])
	}
	putS := func(s string) {
		putU(uint64(len(s)))
		buf.WriteString(s)
	}

	putS(c.Kind().String())
	unitIdx := make(map[string]int)
	var units []string
	for _, e := range entries {
		if _, ok := unitIdx[e.Unit]; !ok {
			unitIdx[e.Unit] = len(units)
			units = append(units, e.Unit)
		}
	}
	putU(uint64(len(units)))
	for _, u := range units {
		putS(u)
	}
	putU(uint64(len(entries)))
	for _, e := range entries {
		putU(uint64(unitIdx[e.Unit]))
		putU(uint64(e.Month.Year()))
		buf.WriteByte(byte(e.Month.Mon()))
		buf.WriteByte(byte(e.Category))
		putU(uint64(e.Count))
	}
	out := append([]byte(nil), magic...)
	return encoder.EncodeAll(buf.Bytes(), out)
}

// 文档注释：制品解码
// 约束：任何格式问题（魔数、压缩帧、越界、乱序、非法月份或类别、零计数、尾部多余字节）均返回包装 ErrCacheCorrupt 的错误。
func Decode(b []byte) (*Cube, error) {
	if !bytes.HasPrefix(b, magic) {
		return nil, fmt.Errorf("%w: bad magic", ErrCacheCorrupt)
	}
	raw, err := decoder.DecodeAll(b[len(magic):], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheCorrupt, err)
	}
	r := bytes.NewReader(raw)
	getU := func() (uint64, error) { return binary.ReadUvarint(r) }
	getS := func() (string, error) {
		n, err := getU()
		if err != nil {
			return "", err
		}
		if n > uint64(r.Len()) {
			return "", errors.New("string length out of range")
		}
		if n == 0 {
			return "", nil
		}
		p := make([]byte, n)
		if _, err := r.Read(p); err != nil {
			return "", err
		}
		return string(p), nil
	}
	corrupt := func(err error) (*Cube, error) { return nil, fmt.Errorf("%w: %w", ErrCacheCorrupt, err) }

	ks, err := getS()
	if err != nil {
		return corrupt(err)
	}
	kind, err := catalog.ParseKind(ks)
	if err != nil {
		return corrupt(err)
	}
	nu, err := getU()
	if err != nil {
		return corrupt(err)
	}
	if nu > uint64(r.Len()) {
		return corrupt(errors.New("unit count out of range"))
	}
	units := make([]string, nu)
	for i := range units {
		if units[i], err = getS(); err != nil {
			return corrupt(err)
		}
	}
	ne, err := getU()
	if err != nil {
		return corrupt(err)
	}
	b2 := NewBuilder(kind)
	var prev Key
	for i := uint64(0); i < ne; i++ {
		ui, err := getU()
		if err != nil {
			return corrupt(err)
		}
		if ui >= nu {
			return corrupt(fmt.Errorf("unit index %d out of range", ui))
		}
		y, err := getU()
		if err != nil {
			return corrupt(err)
		}
		mb, err := r.ReadByte()
		if err != nil {
			return corrupt(err)
		}
		cb, err := r.ReadByte()
		if err != nil {
			return corrupt(err)
		}
		n, err := getU()
		if err != nil {
			return corrupt(err)
		}
		m, err := month.New(int(y), int(mb))
		if err != nil {
			return corrupt(err)
		}
		cat := incident.Category(cb)
		if !cat.Valid() {
			return corrupt(fmt.Errorf("category %d", cb))
		}
		if n == 0 || n > 1<<40 {
			return corrupt(fmt.Errorf("count %d", n))
		}
		k := Key{Unit: units[ui], Month: m, Category: cat}
		if i > 0 && !lessKey(prev, k) {
			return corrupt(errors.New("entries out of order"))
		}
		prev = k
		b2.Add(k, int(n))
	}
	if r.Len() != 0 {
		return corrupt(fmt.Errorf("%d trailing bytes", r.Len()))
	}
	return b2.Cube(), nil
}
