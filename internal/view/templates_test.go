package view

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "₹2,14,000", Rupees(214000))
	assert.Equal(t, "₹200", Rupees(200))
	assert.Equal(t, "67%", Percent(66.6))
	assert.Equal(t, "0%", Percent(0))
}

func TestDict(t *testing.T) {
	m, err := dict("a", 1, "b", "two")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, m)

	_, err = dict("a")
	assert.Error(t, err)
	_, err = dict(1, 2)
	assert.Error(t, err)
}

func TestRenderUnknownTemplate(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	err = engine.Render(rr, "pages/missing.html", TemplateData{})
	assert.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
