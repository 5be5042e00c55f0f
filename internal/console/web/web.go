package web

import _ "embed"

// Index: разметка дашборда. Атрибуты data-kpi задают привязки карточек.
//
//go:embed index.html
var Index []byte

//go:embed style.css
var Style []byte
