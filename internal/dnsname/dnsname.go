// Пакет dnsname — каноническая форма имён DNS-зон.
//
// Каноническая форма: без пробелов по краям, в нижнем регистре, без повторных
// точек и ровно с одной завершающей точкой. Все записи в локальное хранилище
// и все поиски по имени выполняются только в канонической форме.
package dnsname

import "strings"

const (
	maxLabelLen = 63
	maxNameLen  = 253
)

// Canonicalize приводит имя к канонической форме. Функция идемпотентна:
// Canonicalize(Canonicalize(x)) == Canonicalize(x).
// Пустое имя и имя из одних точек дают корень ".".
func Canonicalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(name) + 1)
	prevDot := true // отбрасывает ведущие точки
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '.' {
			if prevDot {
				continue
			}
			prevDot = true
		} else {
			prevDot = false
		}
		b.WriteByte(c)
	}

	out := b.String()
	if !strings.HasSuffix(out, ".") {
		out += "."
	}
	return out
}

// Display возвращает каноническое имя без завершающей точки.
func Display(name string) string {
	c := Canonicalize(name)
	if c == "." {
		return ""
	}
	return strings.TrimSuffix(c, ".")
}

// Equal сравнивает имена по канонической форме.
func Equal(a, b string) bool {
	return Canonicalize(a) == Canonicalize(b)
}

// Valid проверяет, что каноническое имя пригодно для хранения как зона:
// не корень, метки 1..63 октета, общая длина не более 253 без завершающей точки,
// без пробельных символов.
func Valid(name string) bool {
	c := Canonicalize(name)
	if c == "." {
		return false
	}
	trimmed := strings.TrimSuffix(c, ".")
	if len(trimmed) > maxNameLen {
		return false
	}
	for _, label := range strings.Split(trimmed, ".") {
		if len(label) == 0 || len(label) > maxLabelLen {
			return false
		}
		if strings.ContainsAny(label, " \t\r\n/\\") {
			return false
		}
	}
	return true
}
