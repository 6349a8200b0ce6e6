package native

import (
	"github.com/google/uuid"
	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/core/storage"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// OracleContractID is this native's fixed ID (spec.md §6.2).
const OracleContractID = -9

const (
	oraclePrefixRequest   storage.KeyPrefix = 7
	oraclePrefixRequestID storage.KeyPrefix = 9
)

// MinimumOracleResponseFee is the GAS (8-decimal) charged per request,
// paid up front by the requesting contract and refunded to whichever
// account submits the matching response (spec.md §6.2: "gas-for-
// response fee").
const MinimumOracleResponseFee = 50_000_000 // 0.5 GAS

// oracleRequest is one pending request: the URL, an optional JSONPath
// filter, the callback contract (which is also the account the gas was
// charged to) and method, user data, and the gas set aside to pay for
// the response.
type oracleRequest struct {
	URL             string
	Filter          string
	CallbackContract util.Uint160
	CallbackMethod  string
	UserData        []byte
	GasForResponse  int64
}

// OracleContract dispatches off-chain HTTP requests and records their
// responses (spec.md §6.2). This engine performs no actual network
// I/O (spec.md §5's suspension-point model: "External I/O ... occurs
// outside the engine"); FinishResponse is instead the entry point
// cmd/t8n or a test harness calls with an oracle node's answer already
// in hand.
type OracleContract struct {
	Base
	gas *GasToken
}

// NewOracleContract builds the OracleContract native. gas may be nil
// during bootstrap wiring and is filled in by RegisterNatives.
func NewOracleContract(gas *GasToken) *OracleContract {
	o := &OracleContract{gas: gas}
	o.Base = NewBase(OracleContractID, "OracleContract", []Method{
		{Name: "request", ParamCount: 5, ReturnType: "Void", RequiredFlags: callflag.States | callflag.AllowNotify, Handler: o.request},
		{Name: "getPrice", ParamCount: 0, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: o.getPrice},
	})
	return o
}

func (o *OracleContract) getPrice(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	return intItem(MinimumOracleResponseFee), nil
}

// request registers a pending oracle request and charges its caller
// gasForResponse GAS up front, held by OracleContract until a response
// finalizes it.
func (o *OracleContract) request(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	url, err := popBytes(args, 0)
	if err != nil || len(url) == 0 || len(url) > 256 {
		return nil, vmerr.New(vmerr.InvalidArgument, "request: url must be 1-256 bytes")
	}
	var filter []byte
	if _, isNull := args[1].(stackitem.Null); !isNull {
		filter, err = popBytes(args, 1)
		if err != nil {
			return nil, err
		}
	}
	callback, err := popBytes(args, 2)
	if err != nil || len(callback) == 0 || len(callback) > 32 {
		return nil, vmerr.New(vmerr.InvalidArgument, "request: invalid callback method name")
	}
	userData, err := popBytes(args, 3)
	if err != nil {
		return nil, err
	}
	gasForResponse, err := popInt64(args, 4)
	if err != nil || gasForResponse < MinimumOracleResponseFee {
		return nil, vmerr.New(vmerr.InvalidArgument, "request: gasForResponse below minimum")
	}

	caller := util.Uint160(ic.Engine.Current().ContractHash)
	if o.gas != nil {
		if err := o.gas.Burn(ic, caller, gasForResponse); err != nil {
			return nil, err
		}
	}

	id := uuid.New()
	req := oracleRequest{
		URL:              string(url),
		Filter:           string(filter),
		CallbackContract: caller,
		CallbackMethod:   string(callback),
		UserData:         userData,
		GasForResponse:   gasForResponse,
	}
	if err := ic.Snapshot.Put(o.key(oraclePrefixRequest, id[:]), encodeOracleRequest(req)); err != nil {
		return nil, err
	}
	notify(ic, "OracleRequest", stackitem.NewByteArray(id[:]), stackitem.NewByteArray([]byte(req.URL)))
	return stackitem.Null{}, nil
}

// FinishResponse resolves a pending request with an off-chain answer,
// invokes the requesting contract's callback with (url, userData,
// responseCode, result), and refunds the held gas to submitter.
func (o *OracleContract) FinishResponse(ic *interop.Context, requestID [16]byte, responseCode byte, result []byte, submitter util.Uint160) error {
	raw, err := ic.Snapshot.Get(o.key(oraclePrefixRequest, requestID[:]))
	if err != nil || raw == nil {
		return vmerr.New(vmerr.InvalidArgument, "no pending oracle request %x", requestID)
	}
	req, err := decodeOracleRequest(raw)
	if err != nil {
		return err
	}
	if err := ic.Snapshot.Delete(o.key(oraclePrefixRequest, requestID[:])); err != nil {
		return err
	}
	if o.gas != nil {
		if err := o.gas.Mint(ic, submitter, req.GasForResponse); err != nil {
			return err
		}
	}
	callbackArgs := []stackitem.Item{
		stackitem.NewByteArray([]byte(req.URL)),
		stackitem.NewByteArray(req.UserData),
		intItem(int64(responseCode)),
		stackitem.NewByteArray(result),
	}
	target, native, err := ic.ResolveContract(req.CallbackContract)
	if err != nil || target == nil {
		return vmerr.New(vmerr.ContractNotFound, "oracle callback contract not found")
	}
	if native != nil {
		_, err := native.Invoke(ic, req.CallbackMethod, callbackArgs)
		return err
	}
	m, ok := target.Manifest.MethodByNameAndArgCount(req.CallbackMethod, len(callbackArgs))
	if !ok {
		return vmerr.New(vmerr.MethodNotFound, "oracle callback method not found")
	}
	child, err := ic.Engine.LoadScript(target.Script, [20]byte(req.CallbackContract), callflag.All)
	if err != nil {
		return err
	}
	child.ContractID = target.ID
	for i := len(callbackArgs) - 1; i >= 0; i-- {
		if err := child.Estack.Push(callbackArgs[i]); err != nil {
			return err
		}
	}
	child.Jump(m.Offset)
	return nil
}

func encodeOracleRequest(r oracleRequest) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, lenPrefix(len(r.URL))...)
	buf = append(buf, r.URL...)
	buf = append(buf, lenPrefix(len(r.Filter))...)
	buf = append(buf, r.Filter...)
	buf = append(buf, r.CallbackContract[:]...)
	buf = append(buf, lenPrefix(len(r.CallbackMethod))...)
	buf = append(buf, r.CallbackMethod...)
	buf = append(buf, lenPrefix(len(r.UserData))...)
	buf = append(buf, r.UserData...)
	buf = append(buf, int64ToLE(r.GasForResponse)...)
	return buf
}

func decodeOracleRequest(b []byte) (oracleRequest, error) {
	var r oracleRequest
	pos := 0
	readChunk := func() ([]byte, error) {
		if pos+4 > len(b) {
			return nil, vmerr.New(vmerr.InvalidArgument, "truncated oracle request record")
		}
		n := int(beUint32(b[pos : pos+4]))
		pos += 4
		if pos+n > len(b) {
			return nil, vmerr.New(vmerr.InvalidArgument, "truncated oracle request record")
		}
		out := b[pos : pos+n]
		pos += n
		return out, nil
	}
	urlB, err := readChunk()
	if err != nil {
		return r, err
	}
	r.URL = string(urlB)
	filterB, err := readChunk()
	if err != nil {
		return r, err
	}
	r.Filter = string(filterB)
	if pos+util.Uint160Size > len(b) {
		return r, vmerr.New(vmerr.InvalidArgument, "truncated oracle request record")
	}
	copy(r.CallbackContract[:], b[pos:pos+util.Uint160Size])
	pos += util.Uint160Size
	methodB, err := readChunk()
	if err != nil {
		return r, err
	}
	r.CallbackMethod = string(methodB)
	dataB, err := readChunk()
	if err != nil {
		return r, err
	}
	r.UserData = append([]byte(nil), dataB...)
	if pos+8 > len(b) {
		return r, vmerr.New(vmerr.InvalidArgument, "truncated oracle request record")
	}
	r.GasForResponse, err = int64FromLE(b[pos : pos+8])
	return r, err
}
