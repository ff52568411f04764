// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package standardjson

import (
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func TestDecodePreservesUnknownSettingsRaw(t *testing.T) {
	body := `{
		"sources": {"a.sol": {"content": "contract A {}"}},
		"settings": {
			"libraries": {"a.sol": {"Lib": "0x1234567890123456789012345678901234567890"}},
			"outputSelection": {"*": {"*": ["evm.bytecode"]}},
			"optimizer": {"enabled": true, "runs": 200},
			"evmVersion": "london"
		}
	}`

	in, err := Decode([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if in.Sources["a.sol"].Content != "contract A {}" {
		t.Fatalf("got %+v", in.Sources)
	}
	if in.Settings.Libraries["a.sol"]["Lib"] != "0x1234567890123456789012345678901234567890" {
		t.Fatalf("got %+v", in.Settings.Libraries)
	}
	if !strings.Contains(string(in.Settings.Optimizer), "\"runs\":200") {
		t.Fatalf("optimizer not preserved raw: %s", in.Settings.Optimizer)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte("{not json")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestEncodeRoundTripsContractOutput(t *testing.T) {
	out := NewOutput()
	out.Put("a.sol", "A", &ContractOutput{
		EVM:         ContractEVMOutput{Bytecode: ContractBytecode{Object: "6001"}},
		Hash:        "deadbeef",
		FactoryDeps: map[string]string{"b.sol:B": "cafebabe"},
		ABI:         []byte(`[{"type":"function"}]`),
	})

	data, err := Encode(out)
	if err != nil {
		t.Fatal(err)
	}

	var back Output
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	got := back.Contracts["a.sol"]["A"]
	if got.EVM.Bytecode.Object != "6001" || got.Hash != "deadbeef" {
		t.Fatalf("got %+v", got)
	}
	if got.FactoryDeps["b.sol:B"] != "cafebabe" {
		t.Fatalf("got %+v", got.FactoryDeps)
	}
	if !strings.Contains(string(got.ABI), "function") {
		t.Fatalf("abi not preserved: %s", got.ABI)
	}
}

