package controller

import (
	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// Mode は画面のモードです。
type Mode string

const (
	ModeInitial  Mode = "initial"
	ModeEdit     Mode = "edit"
	ModeGenerate Mode = "generate"
	ModeHistory  Mode = "history"
)

func (m Mode) valid() bool {
	switch m {
	case ModeInitial, ModeEdit, ModeGenerate, ModeHistory:
		return true
	}
	return false
}

// Status はモードごとのリクエスト状態です。
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// EditState は編集モードの入力と結果です。
type EditState struct {
	// Original は読み込んだ元画像です。未読み込みなら空です。
	Original    domain.DataURL `json:"original,omitempty"`
	ImageWidth  int            `json:"imageWidth,omitempty"`
	ImageHeight int            `json:"imageHeight,omitempty"`

	Prompt string `json:"prompt"`
	Width  string `json:"width"`
	Height string `json:"height"`

	Status Status         `json:"status"`
	Result domain.DataURL `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`

	image *domain.ImageAsset
}

// GenerateState は生成モードの入力と結果です。
type GenerateState struct {
	Prompt      string             `json:"prompt"`
	AspectRatio domain.AspectRatio `json:"aspectRatio"`

	Status Status         `json:"status"`
	Result domain.DataURL `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// EditSuggestions は編集モードで提示するプロンプトの候補です。
var EditSuggestions = []string{
	"Add a beautiful sunset sky.",
	"Change the season to winter and add snow.",
	"Place a majestic castle in the background.",
	"Make it look like a vintage photograph from the 1970s.",
	"Turn this into a fantasy landscape with glowing mushrooms.",
}

// State は描画に必要な状態全体のスナップショットです。
// Version は状態が変わるたびに増え、古いスナップショットの判別に使います。
type State struct {
	Version  uint64           `json:"version"`
	Mode     Mode             `json:"mode"`
	Edit     EditState        `json:"edit"`
	Generate GenerateState    `json:"generate"`
	User     *domain.User     `json:"user"`
	History  []domain.DataURL `json:"history"`
}

func initialEditState() EditState {
	return EditState{Status: StatusIdle}
}

func initialGenerateState() GenerateState {
	return GenerateState{Status: StatusIdle, AspectRatio: domain.AspectSquare}
}
