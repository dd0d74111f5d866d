package escrow

import (
	"errors"
	"testing"
)

func TestParseInstruction_CreateTrade(t *testing.T) {
	params := CreateTradeParams{
		TakerAmount:       300,
		MakerAmount:       500,
		TakerAssetAccount: testAddr("taker-asset"),
		MakerAssetAccount: testAddr("holding"),
	}
	ins, err := ParseInstruction(EncodeCreateTrade(params))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ins.Kind != CreateTrade {
		t.Fatalf("kind = %v, want CreateTrade", ins.Kind)
	}
	if *ins.Create != params {
		t.Errorf("params = %+v, want %+v", *ins.Create, params)
	}
}

func TestParseInstruction_CompleteTrade(t *testing.T) {
	ins, err := ParseInstruction(EncodeCompleteTrade())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ins.Kind != CompleteTrade {
		t.Fatalf("kind = %v, want CompleteTrade", ins.Kind)
	}
	if ins.Create != nil {
		t.Error("complete instruction must carry no params")
	}
}

func TestParseInstruction_Rejections(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty payload", nil},
		{"unknown discriminant", []byte{0xff}},
		{"create truncated", EncodeCreateTrade(CreateTradeParams{})[:40]},
		{"create over-long", append(EncodeCreateTrade(CreateTradeParams{}), 0)},
		{"complete with trailing bytes", []byte{byte(CompleteTrade), 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseInstruction(tt.data); !errors.Is(err, ErrInvalidInstruction) {
				t.Errorf("ParseInstruction err = %v, want ErrInvalidInstruction", err)
			}
		})
	}
}
