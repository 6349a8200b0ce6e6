package native

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"unicode/utf8"

	"github.com/mr-tron/base58"
	orderedjson "github.com/nspcc-dev/go-ordered-json"
	"github.com/r3e-network/neo-execution-specs/pkg/bigint"
	"github.com/r3e-network/neo-execution-specs/pkg/config"
	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// StdLibID is this native's fixed ID (spec.md §6.2).
const StdLibID = -2

// MaxStdLibStringLength bounds the inputs of atoi and of the decoders
// (base58Decode, base58CheckEncode/Decode, base64Decode,
// base64UrlDecode, hexDecode); itoa, base58Encode and base64Encode are
// not bounded by it. It is the
// same cap real NeoVM applies to prevent unbounded string work inside
// a priced syscall.
const MaxStdLibStringLength = 1024

// StdLib exposes string/number/encoding helpers scripts would
// otherwise have to hand-roll out of primitive opcodes (spec.md §6.2).
type StdLib struct {
	Base
}

// NewStdLib builds the StdLib native.
func NewStdLib() *StdLib {
	s := &StdLib{}
	s.Base = NewBase(StdLibID, "StdLib", []Method{
		{Name: "serialize", ParamCount: 1, ReturnType: "ByteString", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.serialize},
		{Name: "deserialize", ParamCount: 1, ReturnType: "Any", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.deserialize},
		{Name: "base64Encode", ParamCount: 1, ReturnType: "String", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.base64Encode},
		{Name: "base64Decode", ParamCount: 1, ReturnType: "ByteString", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.base64Decode},
		{Name: "base58Encode", ParamCount: 1, ReturnType: "String", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.base58Encode},
		{Name: "base58Decode", ParamCount: 1, ReturnType: "ByteString", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.base58Decode},
		{Name: "base58CheckEncode", ParamCount: 1, ReturnType: "String", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.base58CheckEncode},
		{Name: "base58CheckDecode", ParamCount: 1, ReturnType: "ByteString", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.base58CheckDecode},
		{Name: "itoa", ParamCount: 2, ReturnType: "String", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.itoa},
		{Name: "atoi", ParamCount: 2, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.atoi},
		{Name: "memoryCompare", ParamCount: 2, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.memoryCompare},
		{Name: "memorySearch", ParamCount: 2, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.memorySearch},
		{Name: "stringSplit", ParamCount: 2, ReturnType: "Array", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.stringSplit},
		{Name: "strLen", ParamCount: 1, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.strLen},
		{Name: "jsonSerialize", ParamCount: 1, ReturnType: "ByteString", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.jsonSerialize},
		{Name: "jsonDeserialize", ParamCount: 1, ReturnType: "Any", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.jsonDeserialize},
		{Name: "base64UrlEncode", ParamCount: 1, ReturnType: "String", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.base64UrlEncode},
		{Name: "base64UrlDecode", ParamCount: 1, ReturnType: "ByteString", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.base64UrlDecode},
		{Name: "hexEncode", ParamCount: 1, ReturnType: "String", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.hexEncode},
		{Name: "hexDecode", ParamCount: 1, ReturnType: "ByteString", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: s.hexDecode},
	})
	return s
}

// base64UrlEncode/base64UrlDecode are active only from Echidna and
// hexEncode/hexDecode only from Faun (spec.md §181); Base.Invoke has
// no hardfork plumbing of its own, so each handler checks
// IsHardforkActive itself before doing any work.
func requireHardfork(ic *interop.Context, hf config.Hardfork, method string) error {
	if !ic.IsHardforkActive(hf) {
		return vmerr.New(vmerr.InvalidOpcode, "%s is not active before %s", method, hf)
	}
	return nil
}

func (s *StdLib) serialize(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	raw, err := stackitem.Serialize(args[0])
	if err != nil {
		return nil, err
	}
	return stackitem.NewByteArray(raw), nil
}

func (s *StdLib) deserialize(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	raw, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	return stackitem.Deserialize(raw)
}

func (s *StdLib) base64Encode(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	return stackitem.NewByteArray([]byte(base64.StdEncoding.EncodeToString(b))), nil
}

func (s *StdLib) base64Decode(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	if len(b) > MaxStdLibStringLength {
		return nil, vmerr.New(vmerr.InvalidArgument, "base64Decode input too long")
	}
	out, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil {
		return nil, err
	}
	return stackitem.NewByteArray(out), nil
}

func (s *StdLib) base58Encode(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	return stackitem.NewByteArray([]byte(base58.Encode(b))), nil
}

func (s *StdLib) base58Decode(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	if len(b) > MaxStdLibStringLength {
		return nil, vmerr.New(vmerr.InvalidArgument, "base58Decode input too long")
	}
	out, err := base58.Decode(string(b))
	if err != nil {
		return nil, err
	}
	return stackitem.NewByteArray(out), nil
}

func (s *StdLib) itoa(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	bi, ok := args[0].(stackitem.BigInteger)
	if !ok {
		return nil, vmerr.New(vmerr.TypeMismatch, "itoa expects an Integer")
	}
	base, err := popInt64(args, 1)
	if err != nil {
		return nil, err
	}
	var out string
	switch base {
	case 10:
		out = bi.Value().String()
	case 16:
		v := bi.Value()
		if v.Sign() < 0 {
			out = "-" + fmt.Sprintf("%x", new(big.Int).Abs(v))
		} else {
			out = fmt.Sprintf("%x", v)
		}
	default:
		return nil, vmerr.New(vmerr.InvalidArgument, "itoa supports base 10 or 16 only")
	}
	return stackitem.NewByteArray([]byte(out)), nil
}

func (s *StdLib) atoi(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	if len(b) > MaxStdLibStringLength {
		return nil, vmerr.New(vmerr.InvalidArgument, "atoi input too long")
	}
	base, err := popInt64(args, 1)
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(string(b), int(base), 64)
	if err != nil {
		return nil, vmerr.New(vmerr.InvalidArgument, "atoi: %v", err)
	}
	return intItem(n), nil
}

func (s *StdLib) memoryCompare(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	a, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	b, err := popBytes(args, 1)
	if err != nil {
		return nil, err
	}
	switch {
	case string(a) < string(b):
		return intItem(-1), nil
	case string(a) > string(b):
		return intItem(1), nil
	default:
		return intItem(0), nil
	}
}

func (s *StdLib) memorySearch(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	mem, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	needle, err := popBytes(args, 1)
	if err != nil {
		return nil, err
	}
	idx := indexOf(mem, needle)
	return intItem(int64(idx)), nil
}

func (s *StdLib) stringSplit(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	str, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	sep, err := popBytes(args, 1)
	if err != nil {
		return nil, err
	}
	parts := splitBytes(str, sep)
	out := make([]stackitem.Item, len(parts))
	for i, p := range parts {
		out[i] = stackitem.NewByteArray(p)
	}
	return stackitem.NewArray(out), nil
}

// checksum4 is the leading 4 bytes of a double-SHA256 digest, the same
// check real NeoVM addresses use (and the convention base58CheckEncode/
// base58CheckDecode generalize to arbitrary payloads).
func checksum4(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}

func (s *StdLib) base58CheckEncode(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	if len(b) > MaxStdLibStringLength {
		return nil, vmerr.New(vmerr.InvalidArgument, "base58CheckEncode input too long")
	}
	buf := append(append([]byte(nil), b...), checksum4(b)...)
	return stackitem.NewByteArray([]byte(base58.Encode(buf))), nil
}

func (s *StdLib) base58CheckDecode(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	if len(b) > MaxStdLibStringLength {
		return nil, vmerr.New(vmerr.InvalidArgument, "base58CheckDecode input too long")
	}
	raw, err := base58.Decode(string(b))
	if err != nil {
		return nil, err
	}
	if len(raw) < 4 {
		return nil, vmerr.New(vmerr.InvalidArgument, "base58CheckDecode: payload too short for a checksum")
	}
	payload, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	if string(checksum4(payload)) != string(sum) {
		return nil, vmerr.New(vmerr.InvalidArgument, "base58CheckDecode: checksum mismatch")
	}
	return stackitem.NewByteArray(payload), nil
}

// strLen reports a rune count rather than a true grapheme-cluster count:
// this engine carries no grapheme-segmentation library, so multi-rune
// clusters (emoji ZWJ sequences, combining marks) count as more than one
// "character" here. Pinned to Unicode code points, not UAX #29 clusters.
func (s *StdLib) strLen(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(b) {
		return nil, vmerr.New(vmerr.InvalidArgument, "strLen: input is not valid UTF-8")
	}
	return intItem(int64(utf8.RuneCountInString(string(b)))), nil
}

func (s *StdLib) base64UrlEncode(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	if err := requireHardfork(ic, config.HFEchidna, "base64UrlEncode"); err != nil {
		return nil, err
	}
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	return stackitem.NewByteArray([]byte(base64.URLEncoding.EncodeToString(b))), nil
}

func (s *StdLib) base64UrlDecode(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	if err := requireHardfork(ic, config.HFEchidna, "base64UrlDecode"); err != nil {
		return nil, err
	}
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	if len(b) > MaxStdLibStringLength {
		return nil, vmerr.New(vmerr.InvalidArgument, "base64UrlDecode input too long")
	}
	out, err := base64.URLEncoding.DecodeString(string(b))
	if err != nil {
		return nil, err
	}
	return stackitem.NewByteArray(out), nil
}

func (s *StdLib) hexEncode(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	if err := requireHardfork(ic, config.HFFaun, "hexEncode"); err != nil {
		return nil, err
	}
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	return stackitem.NewByteArray([]byte(hex.EncodeToString(b))), nil
}

func (s *StdLib) hexDecode(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	if err := requireHardfork(ic, config.HFFaun, "hexDecode"); err != nil {
		return nil, err
	}
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	if len(b) > MaxStdLibStringLength {
		return nil, vmerr.New(vmerr.InvalidArgument, "hexDecode input too long")
	}
	out, err := hex.DecodeString(string(b))
	if err != nil {
		return nil, vmerr.New(vmerr.InvalidArgument, "hexDecode: %v", err)
	}
	return stackitem.NewByteArray(out), nil
}

// maxJSONSafeInt is the largest magnitude a jsonSerialize Integer may
// have: IEEE-754 double precision's exact-integer range, matching real
// NeoVM's refusal to silently lose precision through a JSON number.
const maxJSONSafeInt = 1<<53 - 1

func (s *StdLib) jsonSerialize(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	v, err := itemToJSONValue(args[0])
	if err != nil {
		return nil, err
	}
	raw, err := orderedjson.Marshal(v)
	if err != nil {
		return nil, vmerr.New(vmerr.InvalidArgument, "jsonSerialize: %v", err)
	}
	return stackitem.NewByteArray(raw), nil
}

func (s *StdLib) jsonDeserialize(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	var v interface{}
	if err := orderedjson.Unmarshal(b, &v); err != nil {
		return nil, vmerr.New(vmerr.InvalidArgument, "jsonDeserialize: %v", err)
	}
	return jsonValueToItem(v)
}

// itemToJSONValue maps a stack item onto the Go value orderedjson.Marshal
// renders as real NeoVM's stack-item JSON convention: ByteString/Buffer
// as base64 strings, Integer as a number (bounded to stay exact in
// IEEE-754 double precision), Map as an order-preserving object keyed
// by the UTF-8 decoding of its key bytes, Array/Struct as a JSON array.
func itemToJSONValue(item stackitem.Item) (interface{}, error) {
	switch it := item.(type) {
	case stackitem.Null:
		return nil, nil
	case stackitem.Bool:
		return bool(it), nil
	case stackitem.BigInteger:
		v := it.Value().Big()
		if v.CmpAbs(big.NewInt(maxJSONSafeInt)) > 0 {
			return nil, vmerr.New(vmerr.InvalidArgument, "jsonSerialize: integer %s exceeds the safe JSON range", v)
		}
		return v.Int64(), nil
	case stackitem.ByteArray:
		return base64.StdEncoding.EncodeToString([]byte(it)), nil
	case *stackitem.Buffer:
		return base64.StdEncoding.EncodeToString(it.Bytes), nil
	case *stackitem.Array:
		out := make([]interface{}, it.Len())
		for i, v := range it.Value() {
			jv, err := itemToJSONValue(v)
			if err != nil {
				return nil, err
			}
			out[i] = jv
		}
		return out, nil
	case *stackitem.Struct:
		out := make([]interface{}, it.Len())
		for i, v := range it.Value() {
			jv, err := itemToJSONValue(v)
			if err != nil {
				return nil, err
			}
			out[i] = jv
		}
		return out, nil
	case *stackitem.Map:
		om := orderedjson.NewOrderedMap()
		for _, k := range it.Keys() {
			kb, err := k.TryBytes()
			if err != nil {
				return nil, vmerr.New(vmerr.InvalidArgument, "jsonSerialize: map key is not a byte-string or integer")
			}
			v, _ := it.Get(k)
			jv, err := itemToJSONValue(v)
			if err != nil {
				return nil, err
			}
			om.Set(string(kb), jv)
		}
		return om, nil
	default:
		return nil, vmerr.New(vmerr.InvalidArgument, "jsonSerialize: %s has no JSON representation", item.Type())
	}
}

// jsonValueToItem is itemToJSONValue's inverse: it always reconstructs
// ByteString for JSON strings (base64-decoded), Array for JSON arrays
// and Map for JSON objects, so the Buffer/ByteString and Struct/Array
// distinctions JSON cannot carry are lost; JSON numbers become Integer.
func jsonValueToItem(v interface{}) (stackitem.Item, error) {
	switch val := v.(type) {
	case nil:
		return stackitem.Null{}, nil
	case bool:
		return boolItem(val), nil
	case float64:
		if val != math.Trunc(val) {
			return nil, vmerr.New(vmerr.InvalidArgument, "jsonDeserialize: %v is not an integer", val)
		}
		return stackitem.NewBigInteger(mustBigIntFromFloat(val)), nil
	case string:
		raw, err := base64.StdEncoding.DecodeString(val)
		if err != nil {
			return nil, vmerr.New(vmerr.InvalidArgument, "jsonDeserialize: %v", err)
		}
		return stackitem.NewByteArray(raw), nil
	case []interface{}:
		items := make([]stackitem.Item, len(val))
		for i, e := range val {
			it, err := jsonValueToItem(e)
			if err != nil {
				return nil, err
			}
			items[i] = it
		}
		return stackitem.NewArray(items), nil
	case *orderedjson.OrderedMap:
		m := stackitem.NewMap()
		for _, k := range val.Keys() {
			jv, _ := val.Get(k)
			it, err := jsonValueToItem(jv)
			if err != nil {
				return nil, err
			}
			if err := m.Set(stackitem.NewByteArray([]byte(k)), it); err != nil {
				return nil, err
			}
		}
		return m, nil
	default:
		return nil, vmerr.New(vmerr.InvalidArgument, "jsonDeserialize: unsupported JSON value %T", v)
	}
}

func mustBigIntFromFloat(f float64) bigint.Int {
	v, err := bigint.FromBig(big.NewInt(int64(f)))
	if err != nil {
		return bigint.New(0)
	}
	return v
}

func indexOf(haystack, needle []byte) int {
	if len(needle) == 0 {
		return 0
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == string(needle) {
			return i
		}
	}
	return -1
}

func splitBytes(s, sep []byte) [][]byte {
	if len(sep) == 0 {
		return [][]byte{s}
	}
	var out [][]byte
	for {
		i := indexOf(s, sep)
		if i < 0 {
			out = append(out, s)
			return out
		}
		out = append(out, s[:i])
		s = s[i+len(sep):]
	}
}
