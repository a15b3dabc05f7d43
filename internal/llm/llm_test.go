package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

var payslipFields = []entity.SchemaField{
	{ID: "employer", Name: "Employer", Description: "Company paying the salary"},
	{ID: "net_pay", Name: "Net pay", Description: "Amount paid out"},
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(constants.DocumentTypePaystub, payslipFields)

	assert.Contains(t, p, "Extract the following specific information from this Paystub/Pay Slip:")
	assert.Contains(t, p, "- employer: Employer - Company paying the salary\n- net_pay: Net pay - Amount paid out")
	assert.Contains(t, p, `with these exact keys: {"employer", "net_pay"}`)
	assert.Contains(t, p, "use an empty string for that field")
}

func TestBuildPromptUnknownTypeUsesGenericLabel(t *testing.T) {
	p := BuildPrompt(constants.DocumentType("mystery"), payslipFields)
	assert.Contains(t, p, "from this Document:")
}

func TestBuildUserMessage(t *testing.T) {
	msg := BuildUserMessage("PROMPT", "body text")
	assert.Equal(t, "PROMPT\n\nHere is the text to extract from the document:\n\nbody text", msg)
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```JSON {\"a\":1}```":    `{"a":1}`,
		"```\n{}\n```":            "{}",
		"  {\"a\":\"b\"}  ":       `{"a":"b"}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, StripCodeFences(in), "input %q", in)
	}
}

func TestDecodeFields(t *testing.T) {
	t.Run("key set equals requested fields", func(t *testing.T) {
		out, err := DecodeFields("```json\n{\"employer\":\"Acme\",\"extra\":\"x\"}\n```", payslipFields)
		require.NoError(t, err)
		assert.Equal(t, Result{"employer": "Acme", "net_pay": ""}, out)
	})

	t.Run("null and scalar values are stringified", func(t *testing.T) {
		out, err := DecodeFields(`{"employer":null,"net_pay":1234.50}`, payslipFields)
		require.NoError(t, err)
		assert.Equal(t, "", out["employer"])
		assert.Equal(t, "1234.50", out["net_pay"])
	})

	t.Run("bool value", func(t *testing.T) {
		out, err := DecodeFields(`{"employer":true}`, payslipFields)
		require.NoError(t, err)
		assert.Equal(t, "true", out["employer"])
	})

	t.Run("empty content is no_content", func(t *testing.T) {
		_, err := DecodeFields("```json\n```", payslipFields)
		assert.True(t, common.IsExtractionKind(err, common.ExtractionNoContent), "got %v", err)
	})

	t.Run("prose is malformed", func(t *testing.T) {
		_, err := DecodeFields("I could not find anything.", payslipFields)
		assert.True(t, common.IsExtractionKind(err, common.ExtractionMalformed), "got %v", err)
	})

	t.Run("array is malformed", func(t *testing.T) {
		_, err := DecodeFields(`["Acme"]`, payslipFields)
		assert.True(t, common.IsExtractionKind(err, common.ExtractionMalformed), "got %v", err)
	})

	t.Run("nested object value is malformed", func(t *testing.T) {
		_, err := DecodeFields(`{"employer":{"name":"Acme"}}`, payslipFields)
		assert.True(t, common.IsExtractionKind(err, common.ExtractionMalformed), "got %v", err)
	})
}

func TestSendJSON(t *testing.T) {
	t.Run("posts body with headers", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		raw, status, err := SendJSON(context.Background(), nil, http.MethodPost, srv.URL, map[string]string{"a": "b"},
			map[string]string{"Authorization": "Bearer k"}, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"ok":true}`, string(raw))
	})

	t.Run("non-2xx is StatusError with upstream message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
		}))
		defer srv.Close()

		_, status, err := SendJSON(context.Background(), nil, http.MethodGet, srv.URL, nil, nil, nil)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Contains(t, se.Error(), "rate limited")
	})
}

func TestMemoryArtifactStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryArtifactStore()

	_, err := s.GetArtifact(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrArtifactMiss)

	require.NoError(t, s.PutArtifact(ctx, "doc-1", "vs_1"))
	ref, err := s.GetArtifact(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "vs_1", ref)
}
