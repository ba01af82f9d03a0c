package vehiclenlp

import "testing"

func TestExtractBest(t *testing.T) {
	tests := []struct {
		input     string
		wantMake  string
		wantModel string
		wantYear  int
	}{
		{"My 2019 Honda Civic is making a clicking noise", "Honda", "Civic", 2019},
		{"Стучит подвеска на Ладе Весте 2019 года", "Lada", "Vesta", 2019},
		{"У меня тойота камри 2018г, скрипят тормоза", "Toyota", "Camry", 2018},
		{"Когда менять масло на Хендай Солярис?", "Hyundai", "Solaris", 0},
		{"Jeep Grand Cherokee 2020 death wobble", "Jeep", "Grand Cherokee", 2020},
		{"Just bought a Tesla Model 3", "Tesla", "Model 3", 0},
		{"Having trouble with my '18 Chevy Cruze", "Chevrolet", "Cruze", 2018},
		{"Шкода Октавия не заводится в мороз", "Skoda", "Octavia", 0},
		{"Газель 2015 перегревается", "GAZ", "Gazelle", 2015},
		{"2022 Camry hybrid battery issue", "Toyota", "Camry", 2022},
		{"Рено Дастер 2016 гремит выхлоп", "Renault", "Duster", 2016},
		{"Mazda 3 2017 oil change interval", "Mazda", "Mazda3", 2017},
		{"на моём мерседесе e-класс горит чек", "Mercedes-Benz", "E-Class", 0},
		{"Что с коробкой у Лады?", "Lada", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m := ExtractBest(tt.input)
			if m == nil {
				t.Fatalf("ExtractBest(%q) = nil, want match", tt.input)
			}
			if m.Make != tt.wantMake {
				t.Errorf("Make = %q, want %q", m.Make, tt.wantMake)
			}
			if m.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", m.Model, tt.wantModel)
			}
			if m.Year != tt.wantYear {
				t.Errorf("Year = %d, want %d", m.Year, tt.wantYear)
			}
		})
	}
}

func TestExtractNoMatch(t *testing.T) {
	for _, s := range []string{"", "Когда менять масло?", "ладно, спасибо", "пол в салоне мокрый", "давлю на газ, а машина не едет"} {
		if m := ExtractBest(s); m != nil {
			t.Errorf("ExtractBest(%q) = %+v, want nil", s, m)
		}
	}
}

func TestSpanAndString(t *testing.T) {
	m := ExtractBest("Стучит подвеска на Ладе Весте 2019 года")
	if m.Span != "Ладе Весте 2019" {
		t.Errorf("Span = %q", m.Span)
	}
	if m.String() != "Lada Vesta 2019" {
		t.Errorf("String = %q", m.String())
	}
	if (VehicleMatch{Make: "UAZ"}).String() != "UAZ" {
		t.Error("make-only string wrong")
	}
}

func TestExtractOrdersByConfidence(t *testing.T) {
	ms := Extract("Сравниваю форд и Kia Rio 2015")
	if len(ms) != 2 {
		t.Fatalf("expected 2 matches, got %+v", ms)
	}
	if ms[0].Make != "Kia" || ms[0].Confidence <= ms[1].Confidence {
		t.Errorf("unexpected order %+v", ms)
	}
}

func TestMatchWord(t *testing.T) {
	cases := []struct {
		tok, word string
		want      bool
	}{
		{"тойоты", "тойота", true},
		{"солярисе", "солярис", true},
		{"ладно", "лада", false},
		{"ладони", "лада", false},
		{"civics", "civic", false},
		{"киа", "киа", true},
		{"кии", "киа", false},
	}
	for _, c := range cases {
		if got := matchWord(c.tok, c.word, 4); got != c.want {
			t.Errorf("matchWord(%q, %q) = %v, want %v", c.tok, c.word, got, c.want)
		}
	}
}

func TestParseYear(t *testing.T) {
	cases := map[string]int{"2019": 2019, "2019г": 2019, "'18": 2018, "'95": 1995, "1949": 0, "2031": 0, "'40": 0, "abcd": 0}
	for in, want := range cases {
		if got := parseYear(in); got != want {
			t.Errorf("parseYear(%q) = %d, want %d", in, got, want)
		}
	}
}
