package conversation

import (
	"strings"
)

// The prompt templates below are a contract with the downstream chatflow:
// wording, field order and labels must not change. Missing inputs render as
// empty segments, never as omitted labels.

// startInstruction is appended to the rendered profile context on the first
// assistant call of a cycle.
const startInstruction = "Você é um assistente, e caso você esteja recebendo isso e funcionando, " +
	"retorne pedindo para a pessoa escrever um texto sobre ela."

const diagnosisTemplate = `
Nesse momento, você como especialista deverá fazer um diagnóstico que ajude a pessoa a tomar a decisão do que pode fazer mais sentido se desenvolver.
para isso, aqui estão algumas informações da pessoa {resumo_pessoa}.
O feedback, caso a pessoa tenha, foi esse aqui {feedback}.
os pontos fortes são: {pontos_fortes} e os pontos de desenvolvimento são: {pontos_desenvolvimento}.
Na tarefa atual essa são as tarefas e um pouco de como ela é: {resultado}.
e os objetivos são: {objetivos} e que tem o seguinte histórico de interação com você: {historico_bot}.
Leve em consideração também, para mapear as tarefas e dificuldades os relatórios semanais da pessoa {resumos_semanal}.
Retorne esse diagnóstico com a seguinte estrutura e oferecendo argumentos e os motivos.
1- Resumo da pessoa até o momento:
2- Gaps na posição atual e direcional para a posição atual:
3- Futuro dado posição atual e objetivos de carreira:
4- Indicações de pontos de desenvolvimento:(Citando competências, habilidades e atitudes que dado as informações a pessoa deveria considerar desenvolver, bem como os motivos. Foque apenas em sugestões sem montar um PDI ou usar o 70 20 10. é apenas recomendação.)
`

const planTemplate = `
Você é um especialista em desenvolvimento de carreira e deverá criar um Plano de Desenvolvimento Individual (PDI) de alta qualidade.

Use as informações do diagnóstico inicial abaixo como base para montar o PDI:

{diagnostico}

Além disso, utilize as informações reais de {resultado} e {resumos_semanal} para sugerir atividades práticas que façam sentido no contexto do dia a dia da pessoa.

Estruture o PDI no modelo 70-20-10, separado por competência para os seguintes pontos de desenvolvimento escolhidos pela pessoa {focos_desenvolvimento}.
Para cada competência identificada no diagnóstico, siga esta estrutura:

### Competência: [nome da competência]

**Objetivo de Desenvolvimento**
Descreva o objetivo principal para esta competência, resumido em 2-3 linhas.

**70% Atividades práticas (on the job)**
Liste de 3 a 5 atividades diretamente conectadas às {resultado} e {resumos_semanal} da pessoa.
Cada atividade deve ser descrita no formato SMART.

**20% Aprendizagem com os outros**
Liste de 2 a 4 atividades informais (mentorias, feedbacks, shadowing etc.), conectadas às {resultado} e {resumos_semanal}, no formato SMART.

**10% Cursos e treinamentos**
Indique de 1 a 3 formações formais relacionadas à competência.

--- Regras ---
- O PDI deve ter múltiplas competências, cada uma com sua própria estrutura.
- Nas seções 70% e 20%, use {resultado} e {resumos_semanal} para alinhar à realidade.
- Todas as metas devem estar no formato SMART.
- Conecte os objetivos de desenvolvimento ao impacto esperado no negócio.
`

// IntroPrompt builds the first assistant call of a cycle from the rendered
// profile context.
func IntroPrompt(profileContext string) string {
	return "[Contexto do usuário]\n" + profileContext + "\n\n" + startInstruction
}

// DiagnosisPrompt builds the diagnosis request from the aggregated profile
// and the four collected answers.
func DiagnosisPrompt(summary, feedback, strengths, developmentAreas, taskDescription, objectives, interactionHistory, weeklyReports string) string {
	return strings.NewReplacer(
		"{resumo_pessoa}", summary,
		"{feedback}", feedback,
		"{pontos_fortes}", strengths,
		"{pontos_desenvolvimento}", developmentAreas,
		"{resultado}", taskDescription,
		"{objetivos}", objectives,
		"{historico_bot}", interactionHistory,
		"{resumos_semanal}", weeklyReports,
	).Replace(diagnosisTemplate)
}

// PlanPrompt builds the development-plan request from the stored diagnosis
// and the two chosen competencies.
func PlanPrompt(diagnosis, taskDescription, weeklyReports, chosenCompetencies string) string {
	return strings.NewReplacer(
		"{diagnostico}", diagnosis,
		"{resultado}", taskDescription,
		"{resumos_semanal}", weeklyReports,
		"{focos_desenvolvimento}", chosenCompetencies,
	).Replace(planTemplate)
}
