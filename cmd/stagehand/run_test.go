package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSteps(t *testing.T) {
	steps, err := parseSteps([]string{"Menu", `Game:game.Session={"level":2}`, "Shop:shop.Cart"})
	require.NoError(t, err)
	require.Len(t, steps, 3)

	assert.Equal(t, "Menu", steps[0].Identifier)
	assert.Nil(t, steps[0].Parameters)

	assert.Equal(t, "Game", steps[1].Identifier)
	assert.Equal(t, "game.Session", steps[1].ParameterType)
	assert.EqualValues(t, 2, steps[1].Parameters["level"])

	assert.Equal(t, "shop.Cart", steps[2].ParameterType)
	assert.NotNil(t, steps[2].Parameters)
}

func TestParseSteps_Errors(t *testing.T) {
	_, err := parseSteps([]string{`Game:game.Session={bad`})
	assert.Error(t, err)

	_, err = parseSteps([]string{":game.Session"})
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "stagehand version")
}
