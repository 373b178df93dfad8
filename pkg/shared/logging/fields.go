// Package logging provides a chainable structured-logging fields builder on
// top of logrus, plus the per-component constructors the pipeline actually
// calls.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Fields is a chainable builder around logrus.Fields. Every setter returns
// the receiver so calls can be composed fluently.
type Fields map[string]interface{}

// NewFields returns an empty Fields builder.
func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

func (f Fields) Resource(resourceType, resourceName string) Fields {
	f["resource_type"] = resourceType
	if resourceName != "" {
		f["resource_name"] = resourceName
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) RunID(runID string) Fields {
	if runID != "" {
		f["run_id"] = runID
	}
	return f
}

func (f Fields) EntryID(entryID string) Fields {
	if entryID != "" {
		f["entry_id"] = entryID
	}
	return f
}

func (f Fields) FlashpointID(fpID string) Fields {
	if fpID != "" {
		f["flashpoint_id"] = fpID
	}
	return f
}

func (f Fields) RequestID(id string) Fields {
	if id != "" {
		f["request_id"] = id
	}
	return f
}

func (f Fields) TraceID(id string) Fields {
	if id != "" {
		f["trace_id"] = id
	}
	return f
}

func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

func (f Fields) Method(method string) Fields {
	f["method"] = method
	return f
}

func (f Fields) URL(url string) Fields {
	f["url"] = url
	return f
}

func (f Fields) Host(host string) Fields {
	if host != "" {
		f["host"] = host
	}
	return f
}

func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

func (f Fields) Size(n int64) Fields {
	f["size_bytes"] = n
	return f
}

func (f Fields) Version(v string) Fields {
	f["version"] = v
	return f
}

func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}

// ToLogrus converts the builder into a logrus.Fields value for use with
// logrus.WithFields.
func (f Fields) ToLogrus() logrus.Fields {
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// FetchFields builds the field set for a fetcher-stage log line.
func FetchFields(operation, url, host string) Fields {
	return NewFields().Component("fetcher").Operation(operation).URL(url).Host(host)
}
