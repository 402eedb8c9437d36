// Package numerology реализует чистые нумерологические расчёты:
// редукцию чисел, число жизненного пути, числа выражения, души и личности,
// личный год и число недели. Расчёты детерминированы и не имеют побочных
// эффектов, результат собирается в структурированный профиль для отчётов.
package numerology

import (
	"time"
	"unicode"
)

// Таблицы соответствия букв и чисел по системе Пифагора.
var ruLetters = map[rune]int{
	'а': 1, 'б': 2, 'в': 3, 'г': 4, 'д': 5, 'е': 6, 'ё': 7, 'ж': 8, 'з': 9,
	'и': 1, 'й': 2, 'к': 3, 'л': 4, 'м': 5, 'н': 6, 'о': 7, 'п': 8, 'р': 9,
	'с': 1, 'т': 2, 'у': 3, 'ф': 4, 'х': 5, 'ц': 6, 'ч': 7, 'ш': 8, 'щ': 9,
	'ъ': 1, 'ы': 2, 'ь': 3, 'э': 4, 'ю': 5, 'я': 6,
}

var enLetters = map[rune]int{
	'a': 1, 'b': 2, 'c': 3, 'd': 4, 'e': 5, 'f': 6, 'g': 7, 'h': 8, 'i': 9,
	'j': 1, 'k': 2, 'l': 3, 'm': 4, 'n': 5, 'o': 6, 'p': 7, 'q': 8, 'r': 9,
	's': 1, 't': 2, 'u': 3, 'v': 4, 'w': 5, 'x': 6, 'y': 7, 'z': 8,
}

var vowels = map[rune]bool{
	'а': true, 'е': true, 'ё': true, 'и': true, 'о': true, 'у': true,
	'ы': true, 'э': true, 'ю': true, 'я': true,
	'a': true, 'e': true, 'i': true, 'o': true, 'u': true, 'y': true,
}

// Profile структурированный нумерологический профиль пользователя.
// Сериализуется в core_json отчёта.
type Profile struct {
	LifePath      int   `json:"life_path"`
	Expression    int   `json:"expression"`
	SoulUrge      int   `json:"soul_urge"`
	Personality   int   `json:"personality"`
	Destiny       int   `json:"destiny"`
	PersonalYear  int   `json:"personal_year"`
	KarmicLessons []int `json:"karmic_lessons"`
}

// CompatibilityProfile профиль совместимости двух людей.
// Составляющие оцениваются по шкале от 1 до 10, итог — средневзвешенное.
type CompatibilityProfile struct {
	First        Profile `json:"first"`
	Second       Profile `json:"second"`
	LifePath     int     `json:"life_path_score"`
	Emotional    int     `json:"emotional_score"`
	Intellectual int     `json:"intellectual_score"`
	Physical     int     `json:"physical_score"`
	Total        float64 `json:"total_score"`
	Karmic       bool    `json:"karmic_connection"`
	Resonance    int     `json:"resonance"`
}

// DigitSum редуцирует число до однозначного суммированием цифр.
// Пример: 28 -> 2+8 = 10 -> 1.
func DigitSum(number int) int {
	if number < 0 {
		number = -number
	}
	for number > 9 {
		sum := 0
		for number > 0 {
			sum += number % 10
			number /= 10
		}
		number = sum
	}
	return number
}

// LifePath считает число жизненного пути по дате рождения.
func LifePath(birthdate time.Time) int {
	day := DigitSum(birthdate.Day())
	month := DigitSum(int(birthdate.Month()))
	year := DigitSum(birthdate.Year())
	return DigitSum(day + month + year)
}

func sumLetters(fio string, keep func(rune) bool) int {
	total := 0
	for _, r := range fio {
		r = unicode.ToLower(r)
		if !keep(r) {
			continue
		}
		if v, ok := ruLetters[r]; ok {
			total += v
		} else if v, ok := enLetters[r]; ok {
			total += v
		}
	}
	return total
}

// Expression считает число выражения по всем буквам ФИО.
func Expression(fio string) int {
	return DigitSum(sumLetters(fio, func(rune) bool { return true }))
}

// SoulUrge считает число души по гласным буквам ФИО.
func SoulUrge(fio string) int {
	return DigitSum(sumLetters(fio, func(r rune) bool { return vowels[r] }))
}

// Personality считает число личности по согласным буквам ФИО.
func Personality(fio string) int {
	return DigitSum(sumLetters(fio, func(r rune) bool { return !vowels[r] }))
}

// PersonalYear считает личный год: день и месяц рождения плюс текущий год.
func PersonalYear(birthdate time.Time, now time.Time) int {
	day := DigitSum(birthdate.Day())
	month := DigitSum(int(birthdate.Month()))
	year := DigitSum(now.Year())
	return DigitSum(day + month + year)
}

// WeekNumber редуцирует номер недели ISO к числу от 1 до 9.
func WeekNumber(now time.Time) int {
	_, week := now.ISOWeek()
	return DigitSum(week)
}

// KarmicLessons возвращает числа 1..9, ни разу не встретившиеся в ФИО.
func KarmicLessons(fio string) []int {
	present := make(map[int]bool, 9)
	for _, r := range fio {
		r = unicode.ToLower(r)
		if v, ok := ruLetters[r]; ok {
			present[v] = true
		} else if v, ok := enLetters[r]; ok {
			present[v] = true
		}
	}
	var missing []int
	for n := 1; n <= 9; n++ {
		if !present[n] {
			missing = append(missing, n)
		}
	}
	return missing
}

// Calculate собирает полный профиль по дате рождения и ФИО.
func Calculate(birthdate time.Time, fio string, now time.Time) Profile {
	return Profile{
		LifePath:      LifePath(birthdate),
		Expression:    Expression(fio),
		SoulUrge:      SoulUrge(fio),
		Personality:   Personality(fio),
		Destiny:       Expression(fio),
		PersonalYear:  PersonalYear(birthdate, now),
		KarmicLessons: KarmicLessons(fio),
	}
}

// compatScore оценивает близость двух чисел по шкале от 1 до 10.
func compatScore(a, b int) int {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return 10 - diff
}

// CalculateCompatibility собирает профиль совместимости двух людей:
// совместимость жизненных путей, эмоциональная, интеллектуальная и
// физическая составляющие с весами 0.4/0.3/0.2/0.1, кармическая связь
// при совпадении жизненных путей. Резонанс — редукция суммы чисел
// жизненного пути.
func CalculateCompatibility(first, second Profile) CompatibilityProfile {
	lifePath := compatScore(first.LifePath, second.LifePath)
	emotional := compatScore(first.SoulUrge, second.SoulUrge)
	intellectual := compatScore(first.Expression, second.Expression)
	physical := compatScore(first.Personality, second.Personality)

	return CompatibilityProfile{
		First:        first,
		Second:       second,
		LifePath:     lifePath,
		Emotional:    emotional,
		Intellectual: intellectual,
		Physical:     physical,
		Total: float64(lifePath)*0.4 + float64(emotional)*0.3 +
			float64(intellectual)*0.2 + float64(physical)*0.1,
		Karmic:    first.LifePath == second.LifePath,
		Resonance: DigitSum(first.LifePath + second.LifePath),
	}
}
