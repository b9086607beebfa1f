package util_test

import (
	"fmt"
	"testing"

	"github.com/lightpath/vimgrab/util"
)

func ExampleAllElementsNumbers() {
	fmt.Println(util.AllElementsNumbers("2.5"), util.AllElementsNumbers("2.5s"))
	// Output: true false
}

func TestAllElementsNumbers(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"123", true},
		{"1.5", true},
		{"", false},
		{"10ms", false},
		{"abc", false},
	}
	for _, tc := range cases {
		if got := util.AllElementsNumbers(tc.in); got != tc.want {
			t.Errorf("AllElementsNumbers(%q): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}
