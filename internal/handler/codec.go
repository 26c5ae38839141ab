package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

const maxBodySize = 1 << 20

// errMalformedBody is returned when a request body is not the expected JSON.
var errMalformedBody = errors.New("malformed request body")

// readBody decodes the request body with decode, which must consume exactly
// one JSON object.
func readBody(r *http.Request, decode func(d *jx.Decoder) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return errors.Errorf("%w: %v", errMalformedBody, err)
	}
	if len(data) > maxBodySize {
		return errors.Errorf("%w: body exceeds %d bytes", errMalformedBody, maxBodySize)
	}
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return errors.Errorf("%w: expected JSON object", errMalformedBody)
	}
	if err := decode(d); err != nil {
		return errors.Errorf("%w: %v", errMalformedBody, err)
	}
	if d.Next() != jx.Invalid {
		return errors.Errorf("%w: unexpected data after JSON object", errMalformedBody)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(string(n))
}

// decodeOptionalStr decodes a string that may be null.
func decodeOptionalStr(d *jx.Decoder) (*string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

func encodeOptionalStr(e *jx.Encoder, v *string) {
	if v == nil {
		e.Null()
		return
	}
	e.Str(*v)
}

// pathID parses the {id} path parameter.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, &paramError{Name: "id", Value: raw}
	}
	return id, nil
}
