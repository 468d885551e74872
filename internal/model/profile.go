package model

import (
	"strings"
	"time"
)

// Profile はユーザーが編集可能なプロフィール情報を表す。
// IDはユーザーIDと同一で、1ユーザーにつき高々1行となる。
// 行が存在しないことも正当な状態であり、読み手はFullNameを空文字として扱う。
type Profile struct {
	ID        string
	FullName  *string
	UpdatedAt time.Time
}

// DisplayName はFullNameを読み手向けに正規化して返す。NULLは空文字になる。
func (p *Profile) DisplayName() string {
	if p == nil || p.FullName == nil {
		return ""
	}
	return *p.FullName
}

// NormalizeFullName は保存用にフルネームを正規化する。
// 前後の空白を除去し、結果が空文字の場合はnil（NULL）を返す。
func NormalizeFullName(fullName *string) *string {
	if fullName == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*fullName)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
