package little

import (
	"encoding/binary"
	"math/big"
	"reflect"

	"github.com/ericlagergren/decimal"

	"github.com/lk2023060901/little-go/pkg/util/merr"
)

// 十进制数使用 16 字节布局：lo32、mid32、hi32 为 96 位无符号系数，
// flags32 的 16~23 位为小数位数（0~28），31 位为符号位，均为小端。
const (
	decimalMaxScale  = 28
	decimalMantBits  = 96
	decimalScaleBit  = 16
	decimalSignMask  = uint32(1) << 31
	decimalScaleMask = uint32(0xff) << decimalScaleBit
)

var (
	decimalType = reflect.TypeFor[decimal.Big]()
	bigTen      = big.NewInt(10)
)

func decimalOf(v reflect.Value) *decimal.Big {
	if v.CanAddr() {
		return v.Addr().Interface().(*decimal.Big)
	}
	x := v.Interface().(decimal.Big)
	return &x
}

func encodeDecimal(e *encodeState, v reflect.Value) error {
	b, err := decimalBytes(decimalOf(v))
	if err != nil {
		return err
	}
	_, err = e.s.Write(b[:])
	return err
}

func decimalBytes(x *decimal.Big) ([16]byte, error) {
	var out [16]byte
	if !x.IsFinite() {
		return out, merr.WrapErrParameterInvalidMsg("decimal %s is not finite", x.String())
	}
	scale := x.Scale()
	mant := new(decimal.Big).Copy(x).SetScale(0).Int(new(big.Int))
	if scale < 0 {
		mant.Mul(mant, new(big.Int).Exp(bigTen, big.NewInt(int64(-scale)), nil))
		scale = 0
	}
	if scale > decimalMaxScale {
		return out, merr.WrapErrParameterInvalidRange(0, decimalMaxScale, scale, "decimal scale")
	}
	flags := uint32(scale) << decimalScaleBit
	if mant.Sign() < 0 {
		flags |= decimalSignMask
		mant.Neg(mant)
	}
	if mant.BitLen() > decimalMantBits {
		return out, merr.WrapErrParameterInvalidRange(0, decimalMantBits, mant.BitLen(), "decimal coefficient bits")
	}
	var be [12]byte
	mant.FillBytes(be[:])
	binary.LittleEndian.PutUint32(out[0:4], binary.BigEndian.Uint32(be[8:12]))
	binary.LittleEndian.PutUint32(out[4:8], binary.BigEndian.Uint32(be[4:8]))
	binary.LittleEndian.PutUint32(out[8:12], binary.BigEndian.Uint32(be[0:4]))
	binary.LittleEndian.PutUint32(out[12:16], flags)
	return out, nil
}

func decodeDecimal(d *decodeState, _ reflect.Type) (reflect.Value, error) {
	var b [16]byte
	if err := d.src.readFull(b[:], "decimal"); err != nil {
		return reflect.Value{}, err
	}
	x, err := decimalFromBytes(b)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(x).Elem(), nil
}

func decimalFromBytes(b [16]byte) (*decimal.Big, error) {
	flags := binary.LittleEndian.Uint32(b[12:16])
	if flags&^(decimalScaleMask|decimalSignMask) != 0 {
		return nil, merr.WrapErrParameterInvalidMsg("corrupt decimal flags 0x%08x", flags)
	}
	scale := int((flags & decimalScaleMask) >> decimalScaleBit)
	if scale > decimalMaxScale {
		return nil, merr.WrapErrParameterInvalidRange(0, decimalMaxScale, scale, "decimal scale")
	}
	var be [12]byte
	binary.BigEndian.PutUint32(be[0:4], binary.LittleEndian.Uint32(b[8:12]))
	binary.BigEndian.PutUint32(be[4:8], binary.LittleEndian.Uint32(b[4:8]))
	binary.BigEndian.PutUint32(be[8:12], binary.LittleEndian.Uint32(b[0:4]))
	mant := new(big.Int).SetBytes(be[:])
	if flags&decimalSignMask != 0 {
		mant.Neg(mant)
	}
	return new(decimal.Big).SetBigMantScale(mant, scale), nil
}
