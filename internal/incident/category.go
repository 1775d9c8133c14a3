// 包 incident：犯罪事件类别、事件记录与事件仓（过滤、重投影、跳过计数），以及 CSV / Postgres 原始数据来源
package incident

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownCategory = errors.New("unknown crime category")

// Category：police.uk 街面犯罪类别（封闭集合）
type Category uint8

const (
	AntiSocialBehaviour Category = iota + 1
	BicycleTheft
	Burglary
	CriminalDamageArson
	Drugs
	OtherCrime
	OtherTheft
	PossessionOfWeapons
	PublicOrder
	Robbery
	Shoplifting
	TheftFromThePerson
	VehicleCrime
	ViolenceSexualOffences
)

var categoryNames = [...]string{
	AntiSocialBehaviour:    "Anti-social behaviour",
	BicycleTheft:           "Bicycle theft",
	Burglary:               "Burglary",
	CriminalDamageArson:    "Criminal damage and arson",
	Drugs:                  "Drugs",
	OtherCrime:             "Other crime",
	OtherTheft:             "Other theft",
	PossessionOfWeapons:    "Possession of weapons",
	PublicOrder:            "Public order",
	Robbery:                "Robbery",
	Shoplifting:            "Shoplifting",
	TheftFromThePerson:     "Theft from the person",
	VehicleCrime:           "Vehicle crime",
	ViolenceSexualOffences: "Violence and sexual offences",
}

var byName = func() map[string]Category {
	m := make(map[string]Category, len(categoryNames))
	for i, n := range categoryNames {
		if n != "" {
			m[strings.ToLower(n)] = Category(i)
		}
	}
	return m
}()

func (c Category) String() string {
	if c.Valid() {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

func (c Category) Valid() bool { return c >= AntiSocialBehaviour && c <= ViolenceSexualOffences }

// ParseCategory：按 police.uk 原文匹配，忽略大小写与首尾空白
func ParseCategory(s string) (Category, error) {
	if c, ok := byName[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Categories：全部类别，按定义顺序
func Categories() []Category {
	out := make([]Category, 0, len(categoryNames)-1)
	for c := AntiSocialBehaviour; c <= ViolenceSexualOffences; c++ {
		out = append(out, c)
	}
	return out
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
