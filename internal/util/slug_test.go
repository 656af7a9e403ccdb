package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"iPhone 15 Pro Max", "iphone-15-pro-max"},
		{"Điện thoại di động", "dien-thoai-di-dong"},
		{"Nồi cơm điện Toshiba 1.8L", "noi-com-dien-toshiba-1-8l"},
		{"  Áo  khoác --- nữ  ", "ao-khoac-nu"},
		{"100% cotton", "100-cotton"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}
