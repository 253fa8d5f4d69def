package command

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrorKind distingue falhas sem depender do texto de message
type ErrorKind string

const (
	KindNotConnected ErrorKind = "not_connected"
	KindTimeout      ErrorKind = "timeout"
	KindTransport    ErrorKind = "transport"
	KindDecode       ErrorKind = "decode"
	KindEncode       ErrorKind = "encode"
)

// Result é o objeto de resposta do nó com start_time mesclado. Campos extras
// da resposta (calls, data, node_id...) ficam em raw e saem intactos no JSON.
type Result struct {
	Success   bool
	Message   string
	StartTime int64 // epoch ms, carimbado no envio
	Kind      ErrorKind

	raw []byte
}

func parse(raw []byte) Result {
	return Result{
		Success:   gjson.GetBytes(raw, "success").Bool(),
		Message:   gjson.GetBytes(raw, "message").String(),
		StartTime: gjson.GetBytes(raw, "start_time").Int(),
		raw:       raw,
	}
}

func failure(kind ErrorKind, message string, startMs int64) Result {
	raw := []byte(`{"success":false}`)
	raw, _ = sjson.SetBytes(raw, "message", message)
	if startMs > 0 {
		raw, _ = sjson.SetBytes(raw, "start_time", startMs)
	}
	raw, _ = sjson.SetBytes(raw, "error_kind", string(kind))

	res := parse(raw)
	res.Kind = kind
	return res
}

// Get lê um campo arbitrário da resposta (sintaxe gjson)
func (r Result) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

func (r Result) Raw() []byte {
	return append([]byte(nil), r.raw...)
}

func (r Result) MarshalJSON() ([]byte, error) {
	if len(r.raw) == 0 {
		return []byte(`{"success":false,"message":""}`), nil
	}
	return r.Raw(), nil
}
