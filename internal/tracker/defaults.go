package tracker

const DefaultRubric = `1) Autonomy
2) Scope/Impact
3) Learning/Growth
4) Manager/Team quality signals
5) Role clarity vs ambiguity
6) Domain fit
7) Execution intensity (pace, cross-functional load)
8) Comp/level alignment signals
`

const DefaultProfile = `Paste your resume summary here as structured bullets:
- Roles + key achievements (with metrics)
- Tools/skills
- Domains
- 3 signature stories (STAR bullets)
`
