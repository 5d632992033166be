package builtin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateTool_Execute(t *testing.T) {
	tool := NewCalculateTool()

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"expression":"12 * 8"}`))
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.EqualValues(t, 96, resp["result"])
}

func TestCalculateTool_MathFunctions(t *testing.T) {
	tool := NewCalculateTool()

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"expression":"sqrt(144) + 2 ** 3"}`))
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.EqualValues(t, 20, resp["result"])
}

func TestCalculateTool_BadExpression(t *testing.T) {
	tool := NewCalculateTool()

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"expression":"12 **"}`))
	require.Error(t, err)
}

func TestCalculateTool_EmptyExpression(t *testing.T) {
	tool := NewCalculateTool()

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"expression":"  "}`))
	require.Error(t, err)
}
