package cli

import (
	"fmt"

	"quiz-battle-service/internal/domain"
)

type sampleQuestion struct {
	text    string
	options []string
	correct int
}

var generalQuestions = []sampleQuestion{
	{"Which planet is known as the Red Planet?", []string{"Venus", "Mars", "Jupiter", "Mercury"}, 1},
	{"How many continents are there?", []string{"5", "6", "7", "8"}, 2},
	{"What is the capital of Japan?", []string{"Osaka", "Kyoto", "Tokyo", "Nagoya"}, 2},
	{"Which ocean is the largest?", []string{"Atlantic", "Indian", "Arctic", "Pacific"}, 3},
	{"Who painted the Mona Lisa?", []string{"Leonardo da Vinci", "Michelangelo", "Raphael", "Donatello"}, 0},
	{"How many days are in a leap year?", []string{"364", "365", "366", "367"}, 2},
	{"What is the longest river in South America?", []string{"Amazon", "Parana", "Orinoco", "Madeira"}, 0},
	{"Which language has the most native speakers?", []string{"English", "Spanish", "Hindi", "Mandarin Chinese"}, 3},
	{"What is the smallest prime number?", []string{"0", "1", "2", "3"}, 2},
	{"Which country hosted the 2016 Summer Olympics?", []string{"China", "Brazil", "United Kingdom", "Japan"}, 1},
	{"What color do you get by mixing blue and yellow?", []string{"Green", "Purple", "Orange", "Brown"}, 0},
	{"How many strings does a standard violin have?", []string{"3", "4", "5", "6"}, 1},
}

var scienceQuestions = []sampleQuestion{
	{"What is the chemical symbol for gold?", []string{"Ag", "Au", "Gd", "Go"}, 1},
	{"What gas do plants absorb from the air?", []string{"Oxygen", "Nitrogen", "Carbon dioxide", "Helium"}, 2},
	{"What is the powerhouse of the cell?", []string{"Nucleus", "Ribosome", "Mitochondria", "Golgi apparatus"}, 2},
	{"At what temperature does water boil at sea level in Celsius?", []string{"90", "100", "110", "120"}, 1},
	{"Which particle has a negative charge?", []string{"Proton", "Neutron", "Electron", "Photon"}, 2},
	{"What is the hardest natural substance?", []string{"Quartz", "Diamond", "Granite", "Topaz"}, 1},
	{"How many bones are in the adult human body?", []string{"186", "206", "226", "246"}, 1},
	{"Which planet has the most moons?", []string{"Earth", "Mars", "Saturn", "Mercury"}, 2},
	{"What is the speed of light in vacuum, roughly in km/s?", []string{"3,000", "30,000", "300,000", "3,000,000"}, 2},
	{"Which element has atomic number 1?", []string{"Helium", "Hydrogen", "Lithium", "Oxygen"}, 1},
}

// sampleQuestions is the built-in pool used by the static source, the
// simulator and migrate --seed.
func sampleQuestions() map[string][]domain.Question {
	return map[string][]domain.Question{
		"general":     buildPool("general", generalQuestions),
		"Science":     buildPool("Science", scienceQuestions),
		"Mathematics": arithmeticPool(12),
	}
}

func buildPool(subject string, questions []sampleQuestion) []domain.Question {
	out := make([]domain.Question, 0, len(questions))
	for i, q := range questions {
		out = append(out, domain.Question{
			ID:            fmt.Sprintf("%s-%03d", subject, i+1),
			SubjectID:     subject,
			Text:          q.text,
			Options:       q.options,
			CorrectOption: q.correct,
			Difficulty:    "easy",
		})
	}
	return out
}

func arithmeticPool(n int) []domain.Question {
	out := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		a, b := 7+i*3, 4+i*2
		sum := a + b
		correct := i % 4
		options := make([]string, 4)
		for j := range options {
			options[j] = fmt.Sprint(sum + (j-correct)*2)
		}
		difficulty := "easy"
		if i >= n/2 {
			difficulty = "medium"
		}
		out = append(out, domain.Question{
			ID:            fmt.Sprintf("Mathematics-%03d", i+1),
			SubjectID:     "Mathematics",
			Text:          fmt.Sprintf("What is %d + %d?", a, b),
			Options:       options,
			CorrectOption: correct,
			Difficulty:    difficulty,
		})
	}
	return out
}

func allSampleQuestions() []domain.Question {
	var out []domain.Question
	for _, subject := range []string{"general", "Mathematics", "Science"} {
		out = append(out, sampleQuestions()[subject]...)
	}
	return out
}
