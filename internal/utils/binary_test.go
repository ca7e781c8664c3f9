package utils

import (
	"bytes"
	"testing"
)

func TestIsBinary(testingInstance *testing.T) {
	testCases := []struct {
		testName       string
		data           []byte
		expectedBinary bool
	}{
		{testName: "empty data is text", data: nil, expectedBinary: false},
		{testName: "ascii text", data: []byte("package main\n"), expectedBinary: false},
		{testName: "utf8 multibyte text", data: []byte("héllo wörld ✓\n"), expectedBinary: false},
		{testName: "null byte is binary", data: []byte{'a', 0x00, 'b'}, expectedBinary: true},
		{testName: "invalid utf8 is binary", data: []byte{0xff, 0xfe, 0xfd}, expectedBinary: true},
		{testName: "png magic is binary", data: []byte{0x89, 'P', 'N', 'G', '\r', '\n'}, expectedBinary: true},
	}

	for _, testCase := range testCases {
		testingInstance.Run(testCase.testName, func(subTest *testing.T) {
			actualBinary := IsBinary(testCase.data)
			if actualBinary != testCase.expectedBinary {
				subTest.Errorf("IsBinary(%v) = %v, expected %v", testCase.data, actualBinary, testCase.expectedBinary)
			}
		})
	}
}

func TestIsBinarySamplesPrefixOnly(testingInstance *testing.T) {
	// A null byte beyond the sniff window must not flip the classification.
	data := append(bytes.Repeat([]byte{'a'}, SniffLength), 0x00)
	if IsBinary(data) {
		testingInstance.Error("expected bytes past the sniff window to be ignored")
	}
}

func TestIsBinaryToleratesTruncatedTrailingRune(testingInstance *testing.T) {
	// Fill the sample window so the final multibyte rune is cut in half.
	multibyteRune := []byte("é")
	data := bytes.Repeat([]byte{'a'}, SniffLength-1)
	data = append(data, multibyteRune...)
	data = append(data, []byte(" more text")...)
	if IsBinary(data) {
		testingInstance.Error("expected a rune truncated at the window edge to stay text")
	}
}
