package gateway

// Generation settings shared by all operations.
const (
	ChatTemperature     float32 = 0.5
	JSONTemperature     float32 = 0.2
	ChatMaxOutputTokens int32   = 2048
	JSONMaxOutputTokens int32   = 4096

	// QuizContentLimit bounds the study text sent for quiz synthesis.
	QuizContentLimit = 15000

	DefaultQuizLanguage = "Português"
)

// User-facing fallbacks. Operations never return errors to their callers;
// these strings are shown inline instead.
const (
	MsgMissingCredential = "⚠️ ERRO DE CONFIGURAÇÃO: A chave da API do modelo não está configurada. Defina a variável de ambiente indicada em llm.api_key_env e tente novamente."
	MsgEmptyReply        = "Erro ao processar resposta."
	MsgConnectionFailed  = "Ocorreu um erro ao conectar com o Imigra.AI: %s"

	MsgAnalysisMissingCredential = "Erro: Chave API não configurada."
	MsgAnalysisFailed            = "Erro na análise visual."
	MsgAnalysisEmpty             = "Não foi possível analisar."

	DefaultAttachmentPrompt = "Analise esta imagem."
)

// Placeholders substituted in SystemPrompt.
const (
	placeholderContext = "{{INJECT_ACTIVE_PROCESS_HERE}}"
	placeholderCountry = "{{ACTIVE_COUNTRY}}"
	placeholderVisa    = "{{ACTIVE_VISA}}"

	NoContextMarker  = "SEM CONTEXTO: nenhum processo ativo foi encontrado. Peça ao usuário para concluir o onboarding."
	NoCountryMarker  = "(país não definido)"
	NoVisaMarker     = "(visto não definido)"
	SystemTriggerFmt = "[SYSTEM TRIGGER: %s]"
)

const SystemPrompt = `
# SYSTEM ROLE: IMIGRA.AI (O EXECUTOR)
Você é o consultor de imigração sênior do usuário. O usuário contratou a plataforma para **NÃO pagar um advogado**.
Sua função não é apenas "tirar dúvidas", é **FAZER O TRABALHO** junto com ele (Hands-on).

# CONTEXTO ATUAL (JSON INJETADO)
{{INJECT_ACTIVE_PROCESS_HERE}}

# PROTOCOLO DE INTERAÇÃO (CRÍTICO)
1. **Nunca pergunte "como posso ajudar".** Olhe o campo ` + "`active_roadmap`" + ` no JSON acima. Identifique o passo com status ` + "`PENDING`" + `.
2. **No início do processo:** Dê as boas-vindas e diga: "Olá, para seu visto {{ACTIVE_VISA}} em {{ACTIVE_COUNTRY}}, o passo 1 é [Nome do Passo]. Vamos começar [Ação Imediata]?"
3. **Corte Custos:** Se o usuário perguntar de tradução ou advogados, diga: "Não gaste com isso. Eu posso gerar o modelo/rascunho para você. Vamos fazer agora?"
4. **Validação:** Verifique a lista de documentos. Se faltar algo crítico, cobre.

# FERRAMENTAS DE CONSULTORIA
* **Redator de Cartas:** Se o passo for "Cartas de Recomendação" ou "Cover Letter", peça os dados e GERE o texto em inglês técnico.
* **Preenchedor de Forms:** Se for formulário, explique campo a campo.

# TOM DE VOZ
Direto, autoritário (no bom sentido de liderança), focado em economia e aprovação. Responda em Português.
`

const documentAnalysisPrompt = `Analise este documento: %s.
1. Confirme se o tipo de documento corresponde ao declarado.
2. Extraia datas e nomes relevantes.
3. Valide a legibilidade e aponte qualquer problema (cortes, reflexos, baixa resolução).
Responda em Markdown.`

const quizPrompt = `Atue como Professor Sênior.
TEXTO BASE: "%s..."
TAREFA: Crie um Quiz de 5 questões difíceis sobre o texto base.
SAÍDA: JSON puro, sem comentários, no formato:
{"questions":[{"id":1,"question":"...","options":["...","...","...","..."],"correctAnswerIndex":0,"explanation":"..."}]}
"correctAnswerIndex" é o índice (começando em 0) da opção correta.
IDIOMA: %s.`

const financialPrompt = `Atue como Planejador Financeiro de imigração.
DADOS: país %s, visto %s, composição familiar %s, câmbio de segurança R$ %.2f por unidade da moeda de destino.
TAREFA: Estime os custos do processo e responda SOMENTE com JSON no formato:
{
  "summary": {"total_target_currency": 0, "total_brl": 0, "process_cost_target": 0, "proof_of_funds_target": 0},
  "comparison": {"traditional_cost": 0, "imigra_cost": 0, "savings": 0},
  "timeline": [{"phase": "...", "cost_target": 0, "desc": "..."}],
  "currency_symbol": "$"
}
REGRAS:
- Compare "Via Assessoria" (traditional_cost, inclui honorários de advogado/assessoria) com "Via Imigra.AI" (imigra_cost, SEM honorários de assessoria).
- imigra_cost nunca pode ser maior que traditional_cost.
- savings = traditional_cost - imigra_cost.
- total_brl = total_target_currency multiplicado pelo câmbio de segurança.`

const onboardingPrompt = `Atue como Arquiteto de Imigração.
USUÁRIO: país de destino %s, visto %s, profissão %s.
TAREFA: Gere SOMENTE um JSON com duas partes:
{
  "config": {
    "requirements": {
      "documents_list": [{"name": "...", "required": true, "category": "...", "description": "..."}],
      "exams_list": [{"name": "...", "target_score": "...", "type": "Language|Technical|Legal"}],
      "medical_requirements": ["..."]
    },
    "financial_baseline": {"currency": "...", "estimated_gov_fees": 0, "proof_of_funds_individual": 0}
  },
  "active_roadmap": {
    "current_phase": 0,
    "next_action_id": "<id do primeiro passo>",
    "steps": [{"id": "...", "title": "...", "description": "...", "status": "PENDING|LOCKED", "action_type": "AI_GENERATION|UPLOAD|FORM_FILL|EXTERNAL_LINK|GENERAL"}]
  }
}
REGRAS: o roadmap tem de 3 a 5 passos com ids únicos; somente o primeiro passo tem status "PENDING" e todos os outros "LOCKED". Textos em Português.`

// refusalPhrases mark responses where the model declined the task.
var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
	"não posso ajudar com",
	"não consigo atender",
}
