package storage

import (
	"sort"
	"strings"
)

// Gomap 是 map[string]string 的封装，本身不加锁，并发访问由 MapEngine 负责
type Gomap map[string]string

func NewGomap(initCap int) *Gomap {
	gomap := Gomap(make(map[string]string, initCap))
	return &gomap
}

func (m *Gomap) Put(key, value string) {
	(*m)[key] = value
}

func (m *Gomap) Get(key string) (string, bool) {
	v, b := (*m)[key]
	return v, b
}

func (m *Gomap) Del(key string) {
	delete(*m, key)
}

func (m *Gomap) Prefix(prefix string) []string {
	return m.filter(func(k string) bool { return strings.HasPrefix(k, prefix) })
}

func (m *Gomap) Suffix(suffix string) []string {
	return m.filter(func(k string) bool { return strings.HasSuffix(k, suffix) })
}

func (m *Gomap) Contains(sub string) []string {
	return m.filter(func(k string) bool { return strings.Contains(k, sub) })
}

// filter 返回满足条件的 key，按字典序排列
func (m *Gomap) filter(match func(string) bool) []string {
	result := make([]string, 0)
	for k := range *m {
		if k == "" {
			continue
		}
		if match(k) {
			result = append(result, k)
		}
	}
	sort.Strings(result)
	return result
}
