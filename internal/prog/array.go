package prog

import (
	"fmt"
	"math"

	"github.com/vk/flowopt/internal/symbolic"
)

// DType is a buffer element type.
type DType int

const (
	F32 DType = iota
	F64
	I32
	I64
)

func (d DType) String() string {
	switch d {
	case F32:
		return "f32"
	case F64:
		return "f64"
	case I32:
		return "i32"
	default:
		return "i64"
	}
}

// ParseDType converts an element-type name from program input.
func ParseDType(s string) (DType, error) {
	switch s {
	case "f32":
		return F32, nil
	case "f64":
		return F64, nil
	case "i32":
		return I32, nil
	case "i64":
		return I64, nil
	}
	return F32, fmt.Errorf("unknown element type %q", s)
}

// Storage is a buffer's storage class.
type Storage int

const (
	StorageDefault Storage = iota
	StorageFastLocal
	StorageDeviceGlobal
	StorageStream
)

func (s Storage) String() string {
	switch s {
	case StorageFastLocal:
		return "fast-local"
	case StorageDeviceGlobal:
		return "device-global"
	case StorageStream:
		return "stream"
	default:
		return "default"
	}
}

// ParseStorage converts a storage-class name from program input. The empty
// string is the default class.
func ParseStorage(s string) (Storage, error) {
	switch s {
	case "", "default":
		return StorageDefault, nil
	case "fast-local":
		return StorageFastLocal, nil
	case "device-global":
		return StorageDeviceGlobal, nil
	case "stream":
		return StorageStream, nil
	}
	return StorageDefault, fmt.Errorf("unknown storage class %q", s)
}

// Lifetime is a buffer's allocation lifetime.
type Lifetime int

const (
	LifetimeScope Lifetime = iota
	LifetimePersistent
)

func (l Lifetime) String() string {
	if l == LifetimePersistent {
		return "persistent"
	}
	return "scope"
}

// ParseLifetime converts a lifetime name from program input.
func ParseLifetime(s string) (Lifetime, error) {
	switch s {
	case "", "scope":
		return LifetimeScope, nil
	case "persistent":
		return LifetimePersistent, nil
	}
	return LifetimeScope, fmt.Errorf("unknown lifetime %q", s)
}

// Array describes a named buffer.
type Array struct {
	Name      string
	DType     DType
	Shape     []symbolic.Expr
	Transient bool
	Storage   Storage
	Lifetime  Lifetime

	// Init, when set, seeds every element before first use. The tiler
	// uses it to plant reduction identities in accumulation buffers.
	Init *float64
}

// TotalSize is the product of the shape extents.
func (a *Array) TotalSize() symbolic.Expr {
	return symbolic.Product(a.Shape)
}

// ReductionIdentity resolves the identity element of a combinator for an
// element type. The second return value is false when no identity is known,
// in which case the write cannot be safely restructured.
func ReductionIdentity(dtype DType, c Combinator) (float64, bool) {
	switch c {
	case CombinatorSum:
		return 0, true
	case CombinatorProduct:
		return 1, true
	case CombinatorMin:
		switch dtype {
		case F32:
			return math.MaxFloat32, true
		case F64:
			return math.MaxFloat64, true
		case I32:
			return math.MaxInt32, true
		case I64:
			return math.MaxInt64, true
		}
	case CombinatorMax:
		switch dtype {
		case F32:
			return -math.MaxFloat32, true
		case F64:
			return -math.MaxFloat64, true
		case I32:
			return math.MinInt32, true
		case I64:
			return math.MinInt64, true
		}
	}
	return 0, false
}
