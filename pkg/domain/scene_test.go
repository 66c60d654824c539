package domain_test

import (
	"testing"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestSceneEntry_AcceptsType(t *testing.T) {
	typed := domain.SceneEntry{Identifier: "Game", ParameterType: "game.Session"}
	assert.True(t, typed.AcceptsType("game.Session"))
	assert.False(t, typed.AcceptsType("menu.Args"))
	assert.False(t, typed.AcceptsType(""))

	untyped := domain.SceneEntry{Identifier: "Menu", ParameterAllowNull: true}
	assert.False(t, untyped.AcceptsType("game.Session"))
	assert.False(t, untyped.AcceptsType(""))
}
