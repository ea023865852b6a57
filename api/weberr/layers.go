package weberr

import "errors"

// Each Opt adds one layer to the error chain. The outermost response wins.
// Fields and headers from every layer are merged, with outer layers
// overriding inner ones on the same key.

type responseError struct {
	error
	body   interface{}
	status int
}

func (e *responseError) Unwrap() error { return e.error }

type fieldsError struct {
	error
	fields map[string]interface{}
}

func (e *fieldsError) Unwrap() error { return e.error }

type headersError struct {
	error
	headers map[string]string
}

func (e *headersError) Unwrap() error { return e.error }

func Response(err error) (body interface{}, status int, ok bool) {
	var re *responseError
	if errors.As(err, &re) {
		return re.body, re.status, true
	}
	return nil, 0, false
}

func Fields(err error) (map[string]interface{}, bool) {
	var merged map[string]interface{}
	for e := err; e != nil; e = errors.Unwrap(e) {
		fe, ok := e.(*fieldsError)
		if !ok {
			continue
		}
		if merged == nil {
			merged = make(map[string]interface{}, len(fe.fields))
		}
		for k, v := range fe.fields {
			if _, set := merged[k]; !set {
				merged[k] = v
			}
		}
	}
	return merged, merged != nil
}

func Headers(err error) (map[string]string, bool) {
	var merged map[string]string
	for e := err; e != nil; e = errors.Unwrap(e) {
		he, ok := e.(*headersError)
		if !ok {
			continue
		}
		if merged == nil {
			merged = make(map[string]string, len(he.headers))
		}
		for k, v := range he.headers {
			if _, set := merged[k]; !set {
				merged[k] = v
			}
		}
	}
	return merged, merged != nil
}
