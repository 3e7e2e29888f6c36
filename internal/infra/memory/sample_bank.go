package memory

import "quizroom-service/internal/domain"

// SampleBanks is the question set served when no database is configured.
func SampleBanks() map[string][]domain.QuizItem {
	return map[string][]domain.QuizItem{
		"general:easy": {
			{Question: "What is the capital of France?", Options: []string{"Berlin", "Madrid", "Paris", "Rome"}, Answer: "Paris"},
			{Question: "How many days are in a leap year?", Options: []string{"364", "365", "366", "367"}, Answer: "366"},
			{Question: "Which colour do you get by mixing blue and yellow?", Options: []string{"Green", "Purple", "Orange", "Brown"}, Answer: "Green"},
			{Question: "How many continents are there?", Options: []string{"5", "6", "7", "8"}, Answer: "7"},
		},
		"math:easy": {
			{Question: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, Answer: "4"},
			{Question: "What is 9 x 7?", Options: []string{"56", "63", "72", "81"}, Answer: "63"},
			{Question: "What is 144 / 12?", Options: []string{"10", "11", "12", "14"}, Answer: "12"},
		},
		"math:hard": {
			{Question: "What is the derivative of x^3?", Options: []string{"x^2", "3x^2", "3x", "x^3/3"}, Answer: "3x^2"},
			{Question: "What is log2(1024)?", Options: []string{"8", "9", "10", "12"}, Answer: "10"},
		},
		"science:medium": {
			{Question: "What is the chemical symbol for gold?", Options: []string{"Ag", "Au", "Gd", "Go"}, Answer: "Au"},
			{Question: "Which planet has the most moons?", Options: []string{"Earth", "Mars", "Saturn", "Venus"}, Answer: "Saturn"},
			{Question: "What gas do plants absorb from the air?", Options: []string{"Oxygen", "Nitrogen", "Carbon dioxide", "Helium"}, Answer: "Carbon dioxide"},
		},
	}
}
