package attribution

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testAttributionPrefix = "Built with"
	testAttributionLabel  = "Feedback <Kit>"
	testAttributionURL    = "https://example.com/kit?a=1&b=2"
	testAttributionClass  = "attribution-link"
)

func TestRenderDefaultMatchesStockFooter(t *testing.T) {
	rendered, err := Render(Default())
	require.NoError(t, err)
	require.Equal(t, `Powered by <a href="https://doorbell.io">Doorbell.io</a>`, string(rendered))
}

func TestRenderFillsMissingFields(t *testing.T) {
	rendered, err := Render(Config{LinkLabel: "  "})
	require.NoError(t, err)
	require.Equal(t, `Powered by <a href="https://doorbell.io">Doorbell.io</a>`, string(rendered))
}

func TestRenderEscapesCustomValues(t *testing.T) {
	rendered, err := Render(Config{
		PrefixText: testAttributionPrefix,
		LinkLabel:  testAttributionLabel,
		LinkURL:    testAttributionURL,
		LinkClass:  testAttributionClass,
	})
	require.NoError(t, err)
	require.Equal(t, `Built with <a class="attribution-link" href="https://example.com/kit?a=1&amp;b=2">Feedback &lt;Kit&gt;</a>`, string(rendered))
}

func TestRenderNeutralizesScriptURLs(t *testing.T) {
	rendered, err := Render(Config{LinkURL: "javascript:alert(1)"})
	require.NoError(t, err)
	require.Contains(t, string(rendered), `href="#ZgotmplZ"`)
}

func TestRenderText(t *testing.T) {
	require.Equal(t, "Powered by Doorbell.io (https://doorbell.io)", RenderText(Config{}))
	require.Equal(t, "Built with Feedback <Kit> (https://example.com/kit?a=1&b=2)", RenderText(Config{
		PrefixText: testAttributionPrefix,
		LinkLabel:  testAttributionLabel,
		LinkURL:    testAttributionURL,
	}))
}
