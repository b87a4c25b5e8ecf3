package abi

import (
	"context"
	"encoding/json"
	"fmt"
)

// Call sends method with in as payload to handle over t and decodes the reply payload
// into out. in and out may be nil. A failure reported by the implementation side is
// returned as *Error; transport and encoding failures are wrapped.
func Call(ctx context.Context, t Transport, handle uint64, method string, in, out any) error {
	req := Request{Handle: handle, Method: method}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", method, err)
		}
		req.Payload = payload
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	raw, err := t.Invoke(ctx, data)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", method, err)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil || len(resp.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Payload, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// EncodeResult encodes v as a successful Response.
func EncodeResult(v any) ([]byte, error) {
	var resp Response
	if v != nil {
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		resp.Payload = payload
	}
	return json.Marshal(resp)
}

// DecodeRequest decodes a Request envelope.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, &Error{Code: CodeInvalidRequest, Message: err.Error()}
	}
	return req, nil
}

// DecodePayload decodes a request payload into v. An empty payload leaves v untouched.
func DecodePayload(req Request, v any) error {
	if len(req.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Payload, v); err != nil {
		return &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf("%s payload: %v", req.Method, err)}
	}
	return nil
}
