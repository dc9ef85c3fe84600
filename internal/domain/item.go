package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ItemID identifica uma entrada do catálogo (material ou monstro).
//
// O id chega por canais pouco tipados: às vezes número, às vezes string ("42"),
// às vezes com parte fracionária. Os dois lados normalizam para int64 antes de comparar.
type ItemID int64

func (id ItemID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id ItemID) Valido() bool {
	return id > 0
}

// ParseItemID converte a representação textual para ItemID truncando frações.
func ParseItemID(raw string) (ItemID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("item id vazio")
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ItemID(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("item id invalido: %q", raw)
	}
	return ItemID(math.Trunc(f)), nil
}

func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}

	parsed, err := ParseItemID(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
