package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		json string
	}{
		{"exit", ExitReq(), `"Exit"`},
		{"interrupt", InterruptReq(), `"Interrupt"`},
		{"activate", ActivateReq(3), `{"Activate":3}`},
		{"complete", CompleteReq(1), `{"Complete":1}`},
		{"context", ContextReq(2), `{"Context":2}`},
		{"quit", QuitReq(4), `{"Quit":4}`},
		{"search", SearchReq("=1+2"), `{"Search":"=1+2"}`},
		{"activate_context", ActivateContextReq(5, json.RawMessage(`"opt"`)), `{"ActivateContext":{"id":5,"context":"opt"}}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b, err := json.Marshal(c.req)
			require.NoError(t, err)
			require.JSONEq(t, c.json, string(b))

			var got Request
			require.NoError(t, json.Unmarshal(b, &got))
			require.Equal(t, c.req, got)
		})
	}
}

func TestRequestUnmarshalUnknownVariant(t *testing.T) {
	var r Request
	require.Error(t, json.Unmarshal([]byte(`"Bogus"`), &r))
	require.Error(t, json.Unmarshal([]byte(`{"Bogus":1}`), &r))
}

func TestResponseRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		resp Response
		json string
	}{
		{"close", CloseResp(), `"Close"`},
		{"fill", FillResp("= 3"), `{"Fill":"= 3"}`},
		{"update_empty", UpdateResp(nil), `{"Update":[]}`},
		{
			"update",
			UpdateResp([]SearchResult{{ID: 0, Name: "3", Description: "calc"}}),
			`{"Update":[{"id":0,"name":"3","description":"calc"}]}`,
		},
		{
			"desktop_entry",
			DesktopEntryResp(DesktopEntry{Path: "/a.desktop", GPUPreference: GPUDefault}),
			`{"DesktopEntry":{"path":"/a.desktop","gpu_preference":"Default"}}`,
		},
		{
			"context",
			ContextResp(ContextPayload{ID: 1, Options: []ContextOption{{ID: 0, Name: "Open"}}}),
			`{"Context":{"id":1,"options":[{"id":0,"name":"Open"}]}}`,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b, err := json.Marshal(c.resp)
			require.NoError(t, err)
			require.JSONEq(t, c.json, string(b))

			var got Response
			require.NoError(t, json.Unmarshal(b, &got))
			require.Equal(t, c.resp, got)
		})
	}
}

func TestPluginResponseRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		pr   PluginResponse
		json string
	}{
		{"clear", PluginResponse{Kind: PluginResponseClear}, `"Clear"`},
		{"close", PluginResponse{Kind: PluginResponseClose}, `"Close"`},
		{"finished", PluginResponse{Kind: PluginResponseFinished}, `"Finished"`},
		{
			"append",
			PluginResponse{Kind: PluginResponseAppend, Append: PluginSearchResult{ID: 5, Name: "only"}},
			`{"Append":{"id":5,"name":"only","description":""}}`,
		},
		{"fill", PluginResponse{Kind: PluginResponseFill, Fill: "= 3"}, `{"Fill":"= 3"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b, err := json.Marshal(c.pr)
			require.NoError(t, err)
			require.JSONEq(t, c.json, string(b))

			var got PluginResponse
			require.NoError(t, json.Unmarshal(b, &got))
			require.Equal(t, c.pr, got)
		})
	}
}

func TestIconRoundTrip(t *testing.T) {
	n := NameIcon("accessories-calculator")
	b, err := json.Marshal(n)
	require.NoError(t, err)
	require.JSONEq(t, `{"Name":"accessories-calculator"}`, string(b))

	m := MimeIcon("text/plain")
	b, err = json.Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `{"Mime":"text/plain"}`, string(b))

	var got Icon
	require.NoError(t, json.Unmarshal(b, &got))
	require.Equal(t, *m, got)

	require.Nil(t, NameIcon(""))
}

func TestPluginResponseUnknownVariant(t *testing.T) {
	var pr PluginResponse
	require.Error(t, json.Unmarshal([]byte(`"Bogus"`), &pr))
	require.Error(t, json.Unmarshal([]byte(`{"Bogus":{}}`), &pr))
	require.Error(t, json.Unmarshal([]byte(`not json`), &pr))
}
