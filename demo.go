package main

import (
	"github.com/tetraminz/persona_panel/internal/domain"
	"github.com/tetraminz/persona_panel/internal/store"
)

// Демо-проект: кофейня с четырьмя персонами и тремя офферами.
var demoPersonas = []domain.PersonaInput{
	{
		Name: "Дима", Description: "Студент-экономист",
		AgeGroup: "18-23", IncomeLevel: "low", Occupation: "Студент",
		PersonalityTraits: []string{"impulsive", "optimistic"},
		Values:            []string{"экономия", "скорость", "тренды"},
		PainPoints:        []string{"мало денег", "нет времени"},
		Goals:             []string{"успевать учиться и работать"},
		TriggersPositive:  "Скидки, быстрый сервис, модное место",
		TriggersNegative:  "Высокие цены, пафосная атмосфера",
		DecisionFactors:   []string{"цена", "скорость", "расположение"},
		BackgroundStory:   "Студент 3 курса, подрабатывает курьером. Пьёт кофе каждый день, обычно самый дешёвый.",
	},
	{
		Name: "Алексей", Description: "Офисный работник-кофеман",
		AgeGroup: "30-39", IncomeLevel: "high", Occupation: "IT-менеджер",
		PersonalityTraits: []string{"analytical", "status_seeking"},
		Values:            []string{"качество", "вкус", "атмосфера"},
		PainPoints:        []string{"стресс на работе", "скучные кофейни"},
		Goals:             []string{"найти идеальный кофе рядом с офисом"},
		TriggersPositive:  "Специалитет, обжарка, лофт-атмосфера",
		TriggersNegative:  "Массовые сети, растворимый кофе",
		DecisionFactors:   []string{"качество зёрен", "атмосфера", "рекомендации"},
		BackgroundStory:   "Работает в IT, разбирается в кофе. Готов платить за качество. Ходит в кофейни 2 раза в день.",
	},
	{
		Name: "Марина", Description: "Мама в декрете",
		AgeGroup: "30-39", IncomeLevel: "medium", Occupation: "В декрете",
		PersonalityTraits: []string{"practical", "cautious"},
		Values:            []string{"семья", "экономия", "удобство"},
		PainPoints:        []string{"нет времени", "ограниченный бюджет", "некуда деть детей"},
		Goals:             []string{"выпить нормальный кофе хотя бы раз в день"},
		TriggersPositive:  "Скидки, детское меню, быстрый заказ",
		TriggersNegative:  "Дорого, нет места для коляски",
		DecisionFactors:   []string{"цена", "удобство", "детская зона"},
		BackgroundStory:   "Мама троих детей. Живёт рядом с кофейней. Любит кофе, но редко может спокойно его выпить.",
	},
	{
		Name: "Виктор Петрович", Description: "Пенсионер-скептик",
		AgeGroup: "55+", IncomeLevel: "low", Occupation: "Пенсионер",
		PersonalityTraits: []string{"skeptical", "cautious"},
		Values:            []string{"традиции", "честность", "живое общение"},
		PainPoints:        []string{"одиночество", "сложные технологии", "маленькая пенсия"},
		Goals:             []string{"найти место для утреннего кофе и общения"},
		TriggersPositive:  "Живое общение, простота, рекомендации знакомых",
		TriggersNegative:  "Приложения, QR-коды, английские слова",
		DecisionFactors:   []string{"цена", "сервис", "атмосфера", "привычка"},
		BackgroundStory:   "Пенсионер, бывший инженер. Пьёт кофе по утрам. Не доверяет новомодным трендам.",
	},
}

var demoOffers = []domain.OfferInput{
	{
		Headline:     "Скидка 30% на весь кофе!",
		Body:         "Первая неделя: скидка 30% на любой напиток.",
		CallToAction: "Попробовать",
		Price:        "от 150 руб",
		StrategyType: "price",
	},
	{
		Headline:     "Арабика из Эфиопии, ручная обжарка",
		Body:         "Мы обжариваем зёрна сами. Specialty coffee от 92 баллов SCA.",
		CallToAction: "Попробовать",
		Price:        "350 руб",
		StrategyType: "quality",
	},
	{
		Headline:     "Закажи заранее, забери без очереди",
		Body:         "Скачай приложение, закажи кофе по дороге и забери готовый.",
		CallToAction: "Скачать",
		Price:        "от 200 руб",
		StrategyType: "convenience",
	},
}

// SeedDemoProject creates the demo coffee-shop project with its personas
// and offers. Evaluation is the caller's business.
func SeedDemoProject(st *store.Store) (domain.Project, error) {
	project, err := st.CreateProject(domain.ProjectInput{
		Name:  "Кофейня (демо)",
		Niche: "Кофейня в центре города. Специальные сорта кофе, быстрый сервис, уютная атмосфера.",
	}, true)
	if err != nil {
		return domain.Project{}, err
	}
	for _, p := range demoPersonas {
		if _, err := st.CreatePersona(project.ID, p); err != nil {
			return domain.Project{}, err
		}
	}
	for _, o := range demoOffers {
		if _, err := st.CreateOffer(project.ID, o); err != nil {
			return domain.Project{}, err
		}
	}
	return project, nil
}
